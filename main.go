package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"plexbeat/applemusic"
	"plexbeat/audio"
	"plexbeat/config"
	"plexbeat/controller"
	"plexbeat/database"
	"plexbeat/gemini"
	"plexbeat/handlers"
	"plexbeat/lyrics"
	"plexbeat/models"
	"plexbeat/plex"
	"plexbeat/queue"
	"plexbeat/sentry"
)

const version = "1.0.0"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debugf("no .env file loaded: %v", err)
	}
	config.NewConfig()
	setupLogging()
	sentry.Init(version)

	if err := run(context.Background()); err != nil {
		log.Fatal(err)
	}
}

func setupLogging() {
	log.SetFormatter(&nested.Formatter{
		HideKeys:    true,
		FieldsOrder: []string{"module"},
	})

	level, err := log.ParseLevel(config.Config.Options.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func run(ctx context.Context) error {
	db, err := database.New()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	client := plex.NewClient(plex.Options{
		Token:            config.Config.Plex.Token,
		ClientIdentifier: clientIdentifier(db),
		Product:          config.Config.Plex.Product,
		Version:          config.Config.Plex.Version,
	})

	// A token from an earlier PIN login outlives the process.
	if client.Token() == "" {
		if token, err := db.GetSetting("plex_token"); err == nil && token != "" {
			client.SetToken(token)
		}
	}

	q := queue.New(db)
	if err := q.Restore(); err != nil {
		log.Warnf("could not restore queue: %v", err)
	}

	fetchTimeout := time.Duration(config.Config.Audio.FetchTimeoutSeconds) * time.Second
	element := audio.NewElement(audio.ElementOptions{
		Sink:        config.Config.Audio.Sink,
		LoadTimeout: fetchTimeout,
	})
	fetcher := audio.NewFetcher(client.IdentificationHeaders, fetchTimeout)
	engine := audio.NewEngine(element, fetcher)

	resolve := func(track models.Track, serverURI, token string, forceTranscode bool) plex.Decision {
		return plex.ResolveTrackPlayback(track, serverURI, token, plex.ResolveOptions{
			ForceTranscode: forceTranscode,
			HeaderAuth:     config.Config.Plex.HeaderAuth,
			Codec:          config.Config.Audio.Codec,
			BitrateKbps:    config.Config.Audio.Bitrate,
			Channels:       config.Config.Audio.Channels,
		})
	}

	player := controller.NewPlayer(engine, q, resolve, db)
	defer player.Close()

	connectPlayer(ctx, client, player)

	hub := handlers.NewHub()
	defer hub.Close()
	go func() {
		for update := range player.Updates() {
			hub.Broadcast(update)
		}
	}()

	manager := handlers.NewManager(handlers.ManagerOptions{
		Client:      client,
		Player:      player,
		Queue:       q,
		DB:          db,
		Hub:         hub,
		Lyrics:      lyrics.New(),
		Recommender: gemini.New(),
		Importer:    applemusic.NewImporter(client, config.Config.Import.TrackLimit),
		Version:     version,
	})

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(sentry.GetSentryGin())
	manager.Register(router)

	port := config.Config.Options.Port
	if port == "" {
		port = "8080"
	}
	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Infof("listening on :%s", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("http server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("http shutdown: %v", err)
	}
	sentry.Flush(2 * time.Second)
	return nil
}

// clientIdentifier resolves the X-Plex-Client-Identifier: configured value,
// then the persisted one, then a fresh UUID stored for next boot. Plex
// treats a changed identifier as a brand new device.
func clientIdentifier(db *database.Database) string {
	if id := config.Config.Plex.ClientIdentifier; id != "" {
		return id
	}
	if id, err := db.GetSetting("client_identifier"); err == nil && id != "" {
		return id
	}

	id := "plexbeat-" + uuid.NewString()
	if err := db.SetSetting("client_identifier", id); err != nil {
		log.Warnf("could not persist client identifier: %v", err)
	}
	return id
}

// connectPlayer establishes the endpoint playback resolves against. A manual
// PLEX_SERVER_URL skips discovery; otherwise the best advertised connection
// wins. Discovery probes the network, so it runs off the startup path.
func connectPlayer(ctx context.Context, client *plex.Client, player *controller.Player) {
	if override := config.Config.Plex.ServerURL; override != "" {
		player.SetConnection(override, client.Token())
		return
	}
	if client.Token() == "" {
		log.Info("no Plex token yet; authenticate via POST /auth/pin")
		return
	}

	go func() {
		server, uri, err := client.PickServer(ctx, config.Config.Options.LocalDev)
		if err != nil {
			log.Warnf("server discovery failed: %v", err)
			return
		}
		token := server.AccessToken
		if token == "" {
			token = client.Token()
		}
		player.SetConnection(uri, token)
	}()
}
