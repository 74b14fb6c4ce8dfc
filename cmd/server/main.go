package main

import (
	"log"
	"net/http"
	"os"

	"swiftparcel-backend/internal/cache"
	"swiftparcel-backend/internal/database"
	"swiftparcel-backend/internal/events"
	"swiftparcel-backend/internal/handlers"
	"swiftparcel-backend/internal/middleware"
	"swiftparcel-backend/internal/models"
	"swiftparcel-backend/internal/services"
	"swiftparcel-backend/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
)

func main() {
	log.Println("🚀 SWIFTPARCEL BACKEND SERVER STARTING")

	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  Warning: .env file not found, using environment variables from system")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	db, err := database.Connect(dbURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal(err)
	}
	log.Println("✅ Database migrations completed")

	if err := database.SeedUsers(db); err != nil {
		log.Fatal(err)
	}

	// Push notifications are optional: credentials come either from a file
	// path or base64 (cloud deployments).
	var fcmService *services.FCMService
	if fcmCredsBase64 := os.Getenv("FIREBASE_CREDENTIALS_BASE64"); fcmCredsBase64 != "" {
		fcmService, err = services.NewFCMServiceFromBase64(fcmCredsBase64)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM from base64: %v (push notifications disabled)", err)
			fcmService = nil
		}
	} else if fcmCredentialsFile := os.Getenv("FIREBASE_CREDENTIALS_FILE"); fcmCredentialsFile != "" {
		fcmService, err = services.NewFCMService(fcmCredentialsFile)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM from file: %v (push notifications disabled)", err)
			fcmService = nil
		}
	}
	if fcmService != nil {
		log.Println("✅ Firebase Cloud Messaging initialized")
	}

	// Event publishing is optional too; a nil producer publishes nothing.
	var producer *events.Producer
	if broker := os.Getenv("KAFKA_BROKER"); broker != "" {
		topic := os.Getenv("KAFKA_TOPIC")
		if topic == "" {
			topic = "tracking-events"
		}
		producer = events.NewProducer(broker, topic)
		defer producer.Close()
		log.Printf("✅ Kafka producer initialized (topic: %s)", topic)
	}

	directory := services.NewDriverDirectory(db)

	locationCache := cache.NewLocationCache()
	hub := websocket.NewHub(locationCache)
	go hub.Run()
	log.Println("✅ Location gateway hub started")

	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Post("/api/auth/login", handlers.Login(db))

	// Location gateway (authentication handled in handler via query params)
	r.Get("/ws", websocket.HandleWebSocket(hub))

	r.Route("/api", func(r chi.Router) {
		// Public tracking links: no identity required.
		r.Get("/tracking/{awb}", handlers.PublicTracking(db))
		r.Get("/parcels/track/{barcode}", handlers.TrackParcel(db))

		// Scan partner routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)
			r.Use(middleware.RequireRole(models.RolePartner))

			r.Post("/parcels/scan", handlers.ScanParcel(db, producer))
			r.Get("/parcels/partner/my-scans", handlers.GetMyScans(db))
		})

		// Driver + dispatch routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)
			r.Use(middleware.RequireAnyRole(models.RoleDriver, models.RoleAdmin))

			r.Put("/parcels/{id}/status", handlers.UpdateParcelStatus(db, producer))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)
			r.Use(middleware.RequireRole(models.RoleDriver))

			r.Post("/driver/fcm-token", handlers.RegisterFCMToken(db))
		})

		// Customer shipment routes (any authenticated caller owns their own
		// bookings)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)

			r.Post("/shipments", handlers.CreateShipment(db, producer))
			r.Get("/shipments", handlers.ListShipments(db))
			r.Get("/shipments/{id}", handlers.GetShipment(db))
			r.Put("/shipments/{id}", handlers.UpdateShipment(db))
			r.Post("/shipments/{id}/cancel", handlers.CancelShipment(db, producer))
		})

		// Dispatch admin routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)
			r.Use(middleware.RequireRole(models.RoleAdmin))

			r.Get("/parcels", handlers.ListAllParcels(db))
			r.Put("/parcels/{id}/assign-driver", handlers.AssignDriver(db, directory, fcmService))
			r.Post("/tracking/{awb}/update", handlers.ManualTrackingUpdate(db, producer))

			r.Get("/manager/drivers", handlers.GetAllDrivers(db))
			r.Get("/manager/active-drivers", handlers.GetActiveDrivers(db, locationCache))
			r.Put("/manager/drivers/{id}/status", handlers.SetDriverStatus(directory))
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("🚀 Server starting on http://localhost:%s", port)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatal(err)
	}
}
