package plex

// Response shapes for the subset of the Plex API this client consumes.
// Library endpoints wrap everything in a MediaContainer envelope; the
// plex.tv v2 endpoints return bare objects or arrays.

// PIN is one plex.tv login PIN. AuthToken stays empty until the user has
// approved the PIN on the plex.tv side.
type PIN struct {
	ID               int64  `json:"id"`
	Code             string `json:"code"`
	AuthToken        string `json:"authToken"`
	ClientIdentifier string `json:"clientIdentifier"`
	ExpiresAt        string `json:"expiresAt"`
}

// Account is the plex.tv user the token belongs to.
type Account struct {
	ID       int64  `json:"id"`
	UUID     string `json:"uuid"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Thumb    string `json:"thumb"`
}

// Connection is one reachable network path to a media server, immutable
// once discovered. Re-discovery replaces the whole set.
type Connection struct {
	Protocol string `json:"protocol"`
	Address  string `json:"address"`
	Port     int    `json:"port"`
	URI      string `json:"uri"`
	Local    bool   `json:"local"`
	Relay    bool   `json:"relay"`
	IPv6     bool   `json:"IPv6"`
}

// Server is one resource from plex.tv that provides a media server,
// together with its candidate connections.
type Server struct {
	Name             string       `json:"name"`
	Product          string       `json:"product"`
	ClientIdentifier string       `json:"clientIdentifier"`
	Provides         string       `json:"provides"`
	AccessToken      string       `json:"accessToken"`
	Connections      []Connection `json:"connections"`
}

// Playlist is an audio playlist summary as the UI lists them.
type Playlist struct {
	Key       string `json:"key"`
	Title     string `json:"title"`
	Smart     bool   `json:"smart"`
	Summary   string `json:"summary,omitempty"`
	LeafCount int    `json:"leafCount"`
	Thumb     string `json:"thumb,omitempty"`
}

type mediaContainerEnvelope struct {
	MediaContainer mediaContainer `json:"MediaContainer"`
}

type mediaContainer struct {
	Size              int         `json:"size"`
	MachineIdentifier string      `json:"machineIdentifier"`
	Metadata          []metadata  `json:"Metadata"`
	Directory         []directory `json:"Directory"`
}

// metadata is a library item; grandparentTitle is the artist and
// parentTitle the album on track items.
type metadata struct {
	RatingKey        string  `json:"ratingKey"`
	Key              string  `json:"key"`
	Type             string  `json:"type"`
	Title            string  `json:"title"`
	GrandparentTitle string  `json:"grandparentTitle"`
	ParentTitle      string  `json:"parentTitle"`
	Summary          string  `json:"summary"`
	Thumb            string  `json:"thumb"`
	Composite        string  `json:"composite"`
	Duration         int64   `json:"duration"`
	UserRating       float64 `json:"userRating"`
	Index            int     `json:"index"`
	PlaylistType     string  `json:"playlistType"`
	Smart            bool    `json:"smart"`
	LeafCount        int     `json:"leafCount"`
	Media            []media `json:"Media"`
}

type media struct {
	AudioCodec string `json:"audioCodec"`
	Container  string `json:"container"`
	Bitrate    int    `json:"bitrate"`
	Part       []part `json:"Part"`
}

type part struct {
	Key       string `json:"key"`
	Container string `json:"container"`
	Size      int64  `json:"size"`
}

type directory struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Title string `json:"title"`
}
