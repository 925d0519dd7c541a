package main

import (
	"context"
	"log"
	"strings"

	"checkout-service/config"
	"checkout-service/controllers"
	"checkout-service/database"
	"checkout-service/kafka"
	"checkout-service/logger"
	"checkout-service/middleware"
	"checkout-service/models"
	"checkout-service/repository"
	"checkout-service/routes"
	"checkout-service/services"
	"checkout-service/wallet"

	awspkg "checkout-service/pkg/aws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("[CheckoutService] Failed to load config:", err)
	}

	zlog := logger.Initialize(cfg.Env)
	defer zlog.Sync()

	db, err := database.ConnectPostgres(cfg, zlog, &models.Order{}, &models.OrderItem{})
	if err != nil {
		log.Fatal("[CheckoutService] Failed to connect to DB:", err)
	}
	orderRepo := repository.NewGormOrderRepository(db)

	redisClient := database.NewRedisClient(cfg.RedisURL)
	cartRepo := database.NewCartRepository(redisClient)

	producer := kafka.NewProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.OrderTopic)
	defer producer.Close()

	var sns awspkg.SNSPublisher
	if cfg.SNSTopicARN != "" {
		snsClient, err := awspkg.NewSNSClientFromEnv(context.Background())
		if err != nil {
			zlog.Warn("SNS unavailable, confirmation notices disabled", zap.Error(err))
		} else {
			sns = snsClient
		}
	}

	pricingCfg := services.DefaultPricingConfig()
	pricingCfg.TaxRate = cfg.TaxRate
	pricingCfg.FreeShippingThreshold = cfg.FreeShippingThreshold
	pricingCfg.StandardFee = cfg.StandardFee
	pricingCfg.ExpressFee = cfg.ExpressFee
	pricingCfg.OvernightFee = cfg.OvernightFee
	pricingCfg.FeeMultiplier = cfg.FeeMultiplier

	rates := services.NewCachedRateSource(
		services.NewHTTPRateFetcher(cfg.RateSourceURL),
		cfg.RateMaxAge,
		zlog,
	)
	calc := services.NewCalculator(pricingCfg, rates)

	provider, err := wallet.NewEthProvider(context.Background(), cfg.EthRPCURL, cfg.WalletPrivateKey, cfg.EthChainName)
	if err != nil {
		log.Fatal("[CheckoutService] Failed to initialize wallet provider:", err)
	}
	walletCfg := wallet.Config{
		ConnectTimeout:  cfg.ConnectTimeout,
		ConfirmTimeout:  cfg.ConfirmTimeout,
		PollInterval:    cfg.PollInterval,
		PollMaxInterval: cfg.PollMaxInterval,
	}
	newWallet := func() *wallet.Lifecycle {
		return wallet.NewLifecycle(provider, walletCfg, zlog)
	}

	checkoutSvc := services.NewCheckoutService(cartRepo, calc, newWallet, cfg.MerchantAddress, zlog)

	stripeSvc := services.NewStripeService(cfg.StripeSecretKey)
	rails := []services.Rail{
		services.NewCardRail(stripeSvc, "usd"),
		services.NewCryptoRail(),
	}
	finalizer := services.NewOrderFinalizer(
		orderRepo,
		cartRepo,
		rails,
		producer,
		sns,
		cfg.SNSTopicARN,
		"usd",
		cfg.SubmitTimeout,
		zlog,
	)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger(zlog))
	r.Use(middleware.RateLimitMiddleware())

	cc := controllers.NewCheckoutController(checkoutSvc, finalizer, zlog)
	routes.RegisterCheckoutRoutes(r, cc)

	zlog.Info("Checkout service running", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("[CheckoutService] Server failed:", err)
	}
}
