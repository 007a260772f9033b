package handlers

// The HTTP control surface: everything a UI or a curl session needs to
// authenticate, browse the library, shape the queue and drive playback.

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"plexbeat/applemusic"
	"plexbeat/config"
	"plexbeat/controller"
	"plexbeat/database"
	"plexbeat/gemini"
	"plexbeat/lyrics"
	"plexbeat/models"
	"plexbeat/pages"
	"plexbeat/plex"
	"plexbeat/queue"
	"plexbeat/sentryhelper"
)

// tokenSettingKey is where the PIN flow persists the account token so a
// restart does not need a fresh login.
const tokenSettingKey = "plex_token"

type Manager struct {
	Client      *plex.Client
	Player      *controller.Player
	Queue       *queue.Queue
	DB          *database.Database
	Hub         *Hub
	Lyrics      *lyrics.Client
	Recommender *gemini.Client
	Importer    *applemusic.Importer

	version string
	logger  *log.Entry
}

type ManagerOptions struct {
	Client      *plex.Client
	Player      *controller.Player
	Queue       *queue.Queue
	DB          *database.Database
	Hub         *Hub
	Lyrics      *lyrics.Client
	Recommender *gemini.Client
	Importer    *applemusic.Importer
	Version     string
}

func NewManager(opts ManagerOptions) *Manager {
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}
	return &Manager{
		Client:      opts.Client,
		Player:      opts.Player,
		Queue:       opts.Queue,
		DB:          opts.DB,
		Hub:         opts.Hub,
		Lyrics:      opts.Lyrics,
		Recommender: opts.Recommender,
		Importer:    opts.Importer,
		version:     opts.Version,
		logger: log.WithFields(log.Fields{
			"module": "handlers",
		}),
	}
}

func (m *Manager) Register(router *gin.Engine) {
	router.GET("/", m.handleStatusPage)
	router.GET("/health", m.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", m.handleWebsocket)

	auth := router.Group("/auth")
	auth.POST("/pin", m.handleRequestPIN)
	auth.GET("/pin/:id", m.handleCheckPIN)
	auth.GET("/account", m.handleAccount)

	router.GET("/servers", m.handleServers)

	router.GET("/playlists", m.handlePlaylists)
	router.GET("/playlists/:key/items", m.handlePlaylistItems)
	router.POST("/playlists", m.handleCreatePlaylist)

	q := router.Group("/queue")
	q.GET("", m.handleQueueView)
	q.POST("/playlist/:key", m.handleQueuePlaylist)
	q.POST("/add", m.handleQueueAdd)
	q.POST("/next", m.handleQueueAddNext)
	q.POST("/jump", m.handleQueueJump)
	q.DELETE("/:index", m.handleQueueRemove)
	q.DELETE("", m.handleQueueClear)

	p := router.Group("/player")
	p.POST("/play", m.handlePlay)
	p.POST("/pause", m.handlePause)
	p.POST("/toggle", m.handleToggle)
	p.POST("/stop", m.handleStop)
	p.POST("/next", m.handleNext)
	p.POST("/previous", m.handlePrevious)
	p.POST("/seek", m.handleSeek)
	p.POST("/volume", m.handleVolume)
	p.POST("/mute", m.handleMute)
	p.POST("/shuffle", m.handleShuffle)
	p.POST("/repeat", m.handleRepeat)

	router.GET("/now-playing", m.handleNowPlaying)
	router.PUT("/rate", m.handleRate)
	router.GET("/tracks/top-rated", m.handleTopRated)
	router.GET("/history", m.handleHistory)
	router.GET("/history/most-played", m.handleMostPlayed)
	router.GET("/recommendations", m.handleRecommendations)
	router.GET("/lyrics", m.handleLyrics)
	router.POST("/import/applemusic", m.handleImportAppleMusic)
}

// serverURI returns the endpoint the player currently resolves against, or
// writes a 503 and reports false when no connection has been established.
func (m *Manager) serverURI(c *gin.Context) (string, bool) {
	uri, _ := m.Player.Connection()
	if uri == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no server connection; authenticate and wait for discovery"})
		return "", false
	}
	return uri, true
}

func (m *Manager) handleHealth(c *gin.Context) {
	uri, _ := m.Player.Connection()
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"version":   m.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"backend":   "plexbeat",
		"connected": uri != "",
		"features": gin.H{
			"playback":        true,
			"queue":           true,
			"lyrics":          m.Lyrics != nil,
			"import":          m.Importer != nil,
			"recommendations": m.Recommender != nil && m.Recommender.Enabled(),
		},
	})
}

func (m *Manager) handleStatusPage(c *gin.Context) {
	snapshot := m.Player.Snapshot()
	uri, _ := m.Player.Connection()

	data := pages.StatusData{
		Version:   m.version,
		ServerURI: uri,
		State:     string(snapshot.Playback.State),
		QueueLen:  snapshot.QueueLen,
		Index:     snapshot.Index,
		Shuffle:   snapshot.Shuffle,
		Repeat:    string(snapshot.Repeat),
		Clients:   m.Hub.ClientCount(),
	}
	if snapshot.Track != nil {
		data.TrackTitle = snapshot.Track.Title
		data.TrackArtist = snapshot.Track.Artist
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := pages.Status.Execute(c.Writer, data); err != nil {
		m.logger.Errorf("rendering status page: %v", err)
	}
}

func (m *Manager) handleWebsocket(c *gin.Context) {
	m.Hub.Serve(c.Writer, c.Request)
}

func (m *Manager) handleRequestPIN(c *gin.Context) {
	pin, err := m.Client.RequestPIN(c.Request.Context())
	if err != nil {
		m.logger.Errorf("requesting pin: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not request a login pin"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":      pin.ID,
		"code":    pin.Code,
		"authUrl": m.Client.BuildAuthURL(pin.Code),
	})
}

// handleCheckPIN polls one PIN. The first authorized poll persists the
// token, rewires the client and kicks off server discovery so playback can
// start without a restart.
func (m *Manager) handleCheckPIN(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pin id must be a number"})
		return
	}

	pin, err := m.Client.CheckPIN(c.Request.Context(), id)
	switch {
	case errors.Is(err, plex.ErrPINPending):
		c.JSON(http.StatusOK, gin.H{"authorized": false})
		return
	case errors.Is(err, plex.ErrPINExpired):
		c.JSON(http.StatusGone, gin.H{"error": "pin expired, request a new one"})
		return
	case err != nil:
		m.logger.Errorf("checking pin %d: %v", id, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not check the pin"})
		return
	}

	m.Client.SetToken(pin.AuthToken)
	if err := m.DB.SetSetting(tokenSettingKey, pin.AuthToken); err != nil {
		m.logger.Errorf("persisting token: %v", err)
	}

	connected := false
	server, uri, err := m.Client.PickServer(c.Request.Context(), config.Config.Options.LocalDev)
	if err != nil {
		m.logger.Warnf("discovery after login failed: %v", err)
	} else {
		token := server.AccessToken
		if token == "" {
			token = pin.AuthToken
		}
		m.Player.SetConnection(uri, token)
		connected = true
	}

	c.JSON(http.StatusOK, gin.H{"authorized": true, "connected": connected})
}

func (m *Manager) handleAccount(c *gin.Context) {
	account, err := m.Client.Account(c.Request.Context())
	if err != nil {
		m.logger.Errorf("fetching account: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not fetch the signed-in account"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account})
}

func (m *Manager) handleServers(c *gin.Context) {
	servers, err := m.Client.Resources(c.Request.Context())
	if err != nil {
		m.logger.Errorf("discovering servers: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "server discovery failed"})
		return
	}

	type serverView struct {
		Name             string            `json:"name"`
		ClientIdentifier string            `json:"clientIdentifier"`
		Connections      []plex.Connection `json:"connections"`
		SelectedURI      string            `json:"selectedUri"`
	}

	views := make([]serverView, 0, len(servers))
	for _, server := range servers {
		views = append(views, serverView{
			Name:             server.Name,
			ClientIdentifier: server.ClientIdentifier,
			Connections:      server.Connections,
			SelectedURI:      plex.SelectBestConnection(server.Connections, config.Config.Options.LocalDev),
		})
	}
	c.JSON(http.StatusOK, gin.H{"servers": views})
}

func (m *Manager) handlePlaylists(c *gin.Context) {
	uri, ok := m.serverURI(c)
	if !ok {
		return
	}

	playlists, err := m.Client.Playlists(c.Request.Context(), uri)
	if err != nil {
		m.logger.Errorf("listing playlists: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not list playlists"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"playlists": playlists})
}

func (m *Manager) handlePlaylistItems(c *gin.Context) {
	uri, ok := m.serverURI(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	tracks, err := m.Client.PlaylistItems(c.Request.Context(), uri, c.Param("key"), limit)
	if err != nil {
		m.logger.Errorf("fetching playlist items: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not fetch playlist items"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tracks": tracks})
}

func (m *Manager) handleCreatePlaylist(c *gin.Context) {
	var req struct {
		Title      string   `json:"title" binding:"required"`
		RatingKeys []string `json:"ratingKeys" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and ratingKeys are required"})
		return
	}

	uri, ok := m.serverURI(c)
	if !ok {
		return
	}

	playlist, err := m.Client.CreatePlaylist(c.Request.Context(), uri, req.Title, req.RatingKeys)
	if err != nil {
		m.logger.Errorf("creating playlist: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not create playlist"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"playlist": playlist})
}

func (m *Manager) handleQueueView(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"tracks":       m.Queue.Tracks(),
		"currentIndex": m.Queue.CurrentIndex(),
		"length":       m.Queue.Len(),
		"shuffle":      m.Queue.ShuffleEnabled(),
		"repeat":       m.Queue.Repeat(),
	})
}

// handleQueuePlaylist loads a playlist's tracks into the queue, replacing
// whatever was queued. Playback starts from startIndex.
func (m *Manager) handleQueuePlaylist(c *gin.Context) {
	var req struct {
		StartIndex int `json:"startIndex"`
		Limit      int `json:"limit"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
			return
		}
	}

	uri, ok := m.serverURI(c)
	if !ok {
		return
	}

	tracks, err := m.Client.PlaylistItems(c.Request.Context(), uri, c.Param("key"), req.Limit)
	if err != nil {
		m.logger.Errorf("loading playlist into queue: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not fetch playlist items"})
		return
	}
	if len(tracks) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "playlist has no tracks"})
		return
	}

	m.Queue.SetQueue(tracks, req.StartIndex)
	c.JSON(http.StatusOK, gin.H{"queued": len(tracks), "startIndex": m.Queue.CurrentIndex()})
}

func bindTrack(c *gin.Context) (*models.Track, bool) {
	var track models.Track
	if err := c.ShouldBindJSON(&track); err != nil || track.Key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a track with at least a key is required"})
		return nil, false
	}
	return &track, true
}

func (m *Manager) handleQueueAdd(c *gin.Context) {
	track, ok := bindTrack(c)
	if !ok {
		return
	}
	m.Queue.AddToQueue(*track)
	c.JSON(http.StatusOK, gin.H{"queued": track.Title, "length": m.Queue.Len()})
}

func (m *Manager) handleQueueAddNext(c *gin.Context) {
	track, ok := bindTrack(c)
	if !ok {
		return
	}
	m.Queue.AddNextInQueue(*track)
	c.JSON(http.StatusOK, gin.H{"queued": track.Title, "length": m.Queue.Len()})
}

func (m *Manager) handleQueueJump(c *gin.Context) {
	var req struct {
		Index int `json:"index"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index is required"})
		return
	}

	if !m.Player.PlayAtIndex(req.Index) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no track at that index"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"index": req.Index})
}

func (m *Manager) handleQueueRemove(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be a number"})
		return
	}

	removed := m.Queue.RemoveFromQueue(index)
	if removed == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no track at that index"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed.Title, "length": m.Queue.Len()})
}

func (m *Manager) handleQueueClear(c *gin.Context) {
	m.Queue.Clear()
	c.JSON(http.StatusOK, gin.H{"length": 0})
}

func (m *Manager) handlePlay(c *gin.Context) {
	if err := m.Player.Play(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "playing"})
}

func (m *Manager) handlePause(c *gin.Context) {
	m.Player.Pause()
	c.JSON(http.StatusOK, gin.H{"status": "paused"})
}

func (m *Manager) handleToggle(c *gin.Context) {
	if err := m.Player.TogglePlayPause(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "toggled"})
}

func (m *Manager) handleStop(c *gin.Context) {
	m.Player.Stop()
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

func (m *Manager) handleNext(c *gin.Context) {
	m.Player.Next()
	c.JSON(http.StatusOK, gin.H{"index": m.Queue.CurrentIndex()})
}

func (m *Manager) handlePrevious(c *gin.Context) {
	m.Player.Previous()
	c.JSON(http.StatusOK, gin.H{"index": m.Queue.CurrentIndex()})
}

func (m *Manager) handleSeek(c *gin.Context) {
	var req struct {
		Seconds float64 `json:"seconds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Seconds < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "seconds must be a non-negative number"})
		return
	}
	m.Player.Seek(req.Seconds)
	c.JSON(http.StatusOK, gin.H{"seconds": req.Seconds})
}

func (m *Manager) handleVolume(c *gin.Context) {
	var req struct {
		Level *float64 `json:"level"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Level == nil || *req.Level < 0 || *req.Level > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "level must be between 0 and 1"})
		return
	}
	m.Player.SetVolume(*req.Level)
	c.JSON(http.StatusOK, gin.H{"volume": *req.Level})
}

func (m *Manager) handleMute(c *gin.Context) {
	m.Player.ToggleMute()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (m *Manager) handleShuffle(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"shuffle": m.Queue.ToggleShuffle()})
}

func (m *Manager) handleRepeat(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"repeat": m.Queue.CycleRepeat()})
}

func (m *Manager) handleNowPlaying(c *gin.Context) {
	c.JSON(http.StatusOK, m.Player.Snapshot())
}

func (m *Manager) handleRate(c *gin.Context) {
	var req struct {
		RatingKey string  `json:"ratingKey" binding:"required"`
		Rating    float64 `json:"rating"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ratingKey is required"})
		return
	}
	if req.Rating < 0 || req.Rating > 10 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rating must be between 0 and 10"})
		return
	}

	uri, ok := m.serverURI(c)
	if !ok {
		return
	}

	if err := m.Client.RateTrack(c.Request.Context(), uri, req.RatingKey, req.Rating); err != nil {
		m.logger.Errorf("rating track: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not write the rating"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ratingKey": req.RatingKey, "rating": req.Rating})
}

func (m *Manager) handleTopRated(c *gin.Context) {
	uri, ok := m.serverURI(c)
	if !ok {
		return
	}

	minRating, err := strconv.ParseFloat(c.DefaultQuery("min", "8"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "min must be a number"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	tracks, err := m.Client.TopRatedTracks(c.Request.Context(), uri, minRating, limit)
	if err != nil {
		m.logger.Errorf("fetching top rated tracks: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not fetch top rated tracks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tracks": tracks})
}

func (m *Manager) handleHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	records, err := m.DB.GetHistory(limit)
	if err != nil {
		m.logger.Errorf("loading history: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load play history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": records})
}

func (m *Manager) handleMostPlayed(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	records, err := m.DB.GetMostPlayed(limit)
	if err != nil {
		m.logger.Errorf("loading most played: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load most played tracks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tracks": records})
}

// handleRecommendations asks the recommender for tracks similar to the
// recent play history and resolves each suggestion against the library, so
// the response carries queueable tracks, not just names.
func (m *Manager) handleRecommendations(c *gin.Context) {
	if m.Recommender == nil || !m.Recommender.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "recommendations are disabled; set GEMINI_API_KEY"})
		return
	}

	uri, ok := m.serverURI(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	records, err := m.DB.GetHistory(20)
	if err != nil {
		m.logger.Errorf("loading history for recommendations: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load play history"})
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no listening history to recommend from yet"})
		return
	}

	seeds := make([]gemini.Seed, 0, len(records))
	for _, record := range records {
		seeds = append(seeds, gemini.Seed{Title: record.Title, Artist: record.Artist})
	}

	ctx, transaction := sentryhelper.StartRecommendationTransaction(c.Request.Context(), len(seeds))
	defer transaction.Finish()

	suggestions, err := m.Recommender.SuggestTracks(ctx, seeds, limit)
	if err != nil {
		sentryhelper.CaptureException(ctx, err)
		m.logger.Errorf("generating recommendations: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "recommendation generation failed"})
		return
	}

	type recommendation struct {
		Artist string        `json:"artist"`
		Title  string        `json:"title"`
		Track  *models.Track `json:"track,omitempty"`
	}

	results := make([]recommendation, 0, len(suggestions))
	for _, suggestion := range suggestions {
		rec := recommendation{Artist: suggestion.Artist, Title: suggestion.Title}
		hits, err := m.Client.SearchTracks(ctx, uri, suggestion.Artist+" "+suggestion.Title, 1)
		if err == nil && len(hits) > 0 {
			rec.Track = &hits[0]
		}
		results = append(results, rec)
	}

	c.JSON(http.StatusOK, gin.H{"recommendations": results})
}

func (m *Manager) handleLyrics(c *gin.Context) {
	current := m.Player.CurrentTrack()
	if current == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "nothing is playing"})
		return
	}

	result, err := m.Lyrics.Search(c.Request.Context(), current.Title, current.Artist)
	if err != nil {
		m.logger.Errorf("looking up lyrics: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "lyrics lookup failed"})
		return
	}
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no lyrics found for " + current.Title})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"track":  result.TrackName,
		"artist": result.ArtistName,
		"synced": result.Synced,
		"lyrics": result.Lyrics,
	})
}

// handleImportAppleMusic scrapes an Apple Music share link, matches its
// tracks against the library and queues whatever matched. Unmatched titles
// come back in the response so the caller can see what was dropped.
func (m *Manager) handleImportAppleMusic(c *gin.Context) {
	var req struct {
		URL            string `json:"url" binding:"required"`
		Replace        bool   `json:"replace"`
		CreatePlaylist bool   `json:"createPlaylist"`
		PlaylistTitle  string `json:"playlistTitle"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	uri, ok := m.serverURI(c)
	if !ok {
		return
	}

	ctx, transaction := sentryhelper.StartImportTransaction(c.Request.Context(), req.URL)
	defer transaction.Finish()

	result, err := m.Importer.Import(ctx, uri, req.URL)
	if err != nil {
		sentryhelper.CaptureException(ctx, err)
		m.logger.Errorf("importing %s: %v", req.URL, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if len(result.Matched) == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "no imported tracks matched the library",
			"source":    result.Source,
			"unmatched": result.Unmatched,
		})
		return
	}

	if req.Replace {
		m.Queue.SetQueue(result.Matched, 0)
	} else {
		for _, track := range result.Matched {
			m.Queue.AddToQueue(track)
		}
	}

	response := gin.H{
		"source":    result.Source,
		"queued":    len(result.Matched),
		"unmatched": result.Unmatched,
	}

	if req.CreatePlaylist {
		title := req.PlaylistTitle
		if title == "" {
			title = result.Source
		}
		keys := make([]string, 0, len(result.Matched))
		for _, track := range result.Matched {
			if track.RatingKey != "" {
				keys = append(keys, track.RatingKey)
			}
		}
		playlist, err := m.Client.CreatePlaylist(ctx, uri, title, keys)
		if err != nil {
			sentryhelper.CaptureException(ctx, err)
			m.logger.Errorf("creating playlist for import: %v", err)
		} else {
			response["playlist"] = playlist
		}
	}

	c.JSON(http.StatusOK, response)
}
