package config

import (
	"os"
	"strconv"
)

type ConfigStruct struct {
	Plex    PlexConfig
	Audio   AudioConfig
	Options Options
	Gemini  GeminiConfig
	Import  ImportConfig
}

type PlexConfig struct {
	ServerURL        string // manual override; skips discovery when set
	Token            string
	ClientIdentifier string
	Product          string
	Version          string
	HeaderAuth       bool // keep the token out of stream URLs, send it as a header instead
}

type AudioConfig struct {
	Codec               string
	Bitrate             int // transcode target in kbps
	Channels            int
	Sink                string // "aplay" or "null"
	FetchTimeoutSeconds int
}

type GeminiConfig struct {
	Enabled bool
	APIKey  string
}

type ImportConfig struct {
	TrackLimit int
}

type Options struct {
	Port     string
	LocalDev bool
	LogLevel string
}

var Config *ConfigStruct

func NewConfig() {
	config := &ConfigStruct{
		Plex: PlexConfig{
			ServerURL:        os.Getenv("PLEX_SERVER_URL"),
			Token:            os.Getenv("PLEX_TOKEN"),
			ClientIdentifier: os.Getenv("PLEX_CLIENT_ID"),
			Product:          getProduct(),
			Version:          getVersion(),
			HeaderAuth:       os.Getenv("PLEX_HEADER_AUTH") == "true",
		},
		Audio: AudioConfig{
			Codec:               getAudioCodec(),
			Bitrate:             getMusicBitrate(),
			Channels:            getAudioChannels(),
			Sink:                getAudioSink(),
			FetchTimeoutSeconds: getFetchTimeout(),
		},
		Options: Options{
			Port:     os.Getenv("PORT"),
			LocalDev: os.Getenv("LOCAL_DEV") == "true",
			LogLevel: os.Getenv("LOG_LEVEL"),
		},
		Gemini: GeminiConfig{
			Enabled: os.Getenv("GEMINI_ENABLED") == "true",
			APIKey:  os.Getenv("GEMINI_API_KEY"),
		},
		Import: ImportConfig{
			TrackLimit: getImportTrackLimit(),
		},
	}

	Config = config
}

func getProduct() string {
	if product := os.Getenv("PLEX_PRODUCT"); product != "" {
		return product
	}
	return "plexbeat"
}

func getVersion() string {
	if version := os.Getenv("PLEX_VERSION"); version != "" {
		return version
	}
	return "1.0.0"
}

func getAudioCodec() string {
	codec := os.Getenv("AUDIO_CODEC")
	switch codec {
	case "mp3", "aac", "opus":
		return codec
	}
	return "mp3"
}

func getMusicBitrate() int {
	bitrateStr := os.Getenv("MUSIC_BITRATE")
	if bitrateStr == "" {
		return 320
	}
	bitrate, err := strconv.Atoi(bitrateStr)
	if err != nil || bitrate <= 0 {
		return 320
	}
	// Plex music transcodes top out at 320 kbps; anything below 64 sounds rough
	if bitrate < 64 {
		return 64
	}
	if bitrate > 320 {
		return 320
	}
	return bitrate
}

func getAudioChannels() int {
	channelsStr := os.Getenv("AUDIO_CHANNELS")
	if channelsStr == "" {
		return 2
	}
	channels, err := strconv.Atoi(channelsStr)
	if err != nil || channels <= 0 {
		return 2
	}
	if channels > 8 {
		return 8
	}
	return channels
}

func getAudioSink() string {
	sink := os.Getenv("AUDIO_SINK")
	switch sink {
	case "aplay", "null":
		return sink
	}
	return "aplay"
}

func getFetchTimeout() int {
	timeoutStr := os.Getenv("FETCH_TIMEOUT_SECONDS")
	if timeoutStr == "" {
		return 30
	}
	timeout, err := strconv.Atoi(timeoutStr)
	if err != nil || timeout <= 0 {
		return 30
	}
	if timeout < 5 {
		return 5
	}
	if timeout > 300 {
		return 300
	}
	return timeout
}

func getImportTrackLimit() int {
	limitStr := os.Getenv("IMPORT_TRACK_LIMIT")
	if limitStr == "" {
		return 15
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		return 15
	}
	if limit > 50 {
		return 50 // keep import scrapes and library lookups bounded
	}
	return limit
}
