package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"storefront/internal/auth"
	"storefront/internal/cart"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handlers"
	"storefront/internal/middleware"
)

func main() {
	config.Load()
	if err := config.AppEnv.Validate(); err != nil {
		log.Fatal(err)
	}

	client, err := database.Connect(config.AppEnv.MongoURI, config.AppEnv.MongoTimeout)
	if err != nil {
		log.Fatal(err)
	}

	db := client.Database(config.AppEnv.DBName)

	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureIndexes(db); err != nil {
		if errors.Is(err, database.ErrCartIndexes) {
			log.Fatal(err)
		}
		log.Printf("index warning: %v", err)
	}

	keys, err := newKeyring(config.AppEnv)
	if err != nil {
		log.Fatal(err)
	}
	tokens := auth.NewTokenIssuer(keys, config.AppEnv.AccessTokenTTL)
	authService := auth.NewService(database.NewUserStore(db), tokens)
	products := database.NewProductStore(db)
	orders := database.NewOrderStore(db)
	engine := cart.NewEngine(database.NewCartStore(db))
	cartOpts := handlers.CartOptions{RequireAuth: config.AppEnv.CartRequireAuth}

	r := gin.Default()
	r.Use(cors.New(corsConfig(config.AppEnv.CORSAllowedOrigins)))

	r.GET("/health", handlers.Health(func(ctx context.Context) error {
		return database.Ping(ctx, db)
	}))

	r.POST("/auth/signup", handlers.Signup(authService))
	r.POST("/auth/login", handlers.Login(authService))
	r.POST("/auth/guest", handlers.Guest())
	r.GET("/auth/me", middleware.UserAuth(tokens), handlers.GetMe(authService))

	r.GET("/products", handlers.GetProducts(products))
	r.GET("/product/:id", handlers.GetProduct(products))
	r.GET("/categories", handlers.GetCategories(products))

	cartGroup := r.Group("/cart")
	cartGroup.Use(middleware.OptionalUserAuth(tokens))
	{
		cartGroup.POST("/add", handlers.AddToCart(engine, cartOpts))
		cartGroup.GET("", handlers.GetCart(engine, cartOpts))
		cartGroup.PUT("/update", handlers.UpdateCartItem(engine, cartOpts))
		cartGroup.DELETE("/remove", handlers.RemoveCartItem(engine, cartOpts))
		cartGroup.DELETE("/clear", handlers.ClearCart(engine, cartOpts))
		cartGroup.POST("/merge", handlers.MergeCart(engine, cartOpts))
		cartGroup.POST("/checkout", handlers.CheckoutCart(engine, cartOpts))
	}

	r.POST("/orders", middleware.OptionalUserAuth(tokens), handlers.CreateOrder(orders))
	r.GET("/orders", middleware.UserAuth(tokens), handlers.GetOrders(orders))
	r.GET("/orders/:id", middleware.UserAuth(tokens), handlers.GetOrder(orders))

	srv := &http.Server{
		Addr:         ":" + config.AppEnv.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Println("listening on", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server Shutdown: %v", err)
	}
	if err := client.Disconnect(shutdownCtx); err != nil {
		log.Printf("MongoDB disconnect: %v", err)
	}
	log.Println("server stopped")
}

func newKeyring(env config.Config) (*auth.Keyring, error) {
	previous := make([]auth.SigningKey, 0, len(env.JWTPreviousKeys))
	for _, key := range env.JWTPreviousKeys {
		previous = append(previous, auth.SigningKey{ID: key.ID, Secret: []byte(key.Secret)})
	}
	return auth.NewKeyring(auth.SigningKey{ID: env.JWTKeyID, Secret: []byte(env.JWTSecret)}, previous...)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
