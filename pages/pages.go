// Package pages holds the daemon's minimal HTML surface. The real UI is
// expected to live elsewhere and talk to the JSON API; this page exists so
// hitting the root in a browser shows whether the daemon is alive and what
// it is playing.
package pages

import "html/template"

// StatusData feeds the status page template.
type StatusData struct {
	Version     string
	ServerURI   string
	State       string
	TrackTitle  string
	TrackArtist string
	QueueLen    int
	Index       int
	Shuffle     bool
	Repeat      string
	Clients     int
}

var Status = template.Must(template.New("status").Parse(statusHTML))

const statusHTML = `<!DOCTYPE html>
<html>
<head>
    <title>plexbeat</title>
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            max-width: 800px;
            margin: 0 auto;
            padding: 20px;
        }
        table { border-collapse: collapse; }
        td { padding: 4px 12px 4px 0; }
        td:first-child { color: #666; }
    </style>
</head>
<body>
    <h1>plexbeat</h1>
    <p>Headless Plex music player, version {{.Version}}.</p>
    <table>
        <tr><td>Server</td><td>{{if .ServerURI}}{{.ServerURI}}{{else}}not connected{{end}}</td></tr>
        <tr><td>State</td><td>{{.State}}</td></tr>
        {{if .TrackTitle}}<tr><td>Track</td><td>{{.TrackTitle}}{{if .TrackArtist}} &mdash; {{.TrackArtist}}{{end}}</td></tr>{{end}}
        <tr><td>Queue</td><td>{{.QueueLen}} tracks (position {{.Index}})</td></tr>
        <tr><td>Shuffle</td><td>{{.Shuffle}}</td></tr>
        <tr><td>Repeat</td><td>{{.Repeat}}</td></tr>
        <tr><td>Listeners</td><td>{{.Clients}} websocket client(s)</td></tr>
    </table>
    <p><a href="/health">health</a> &middot; <a href="/metrics">metrics</a> &middot; <a href="/now-playing">now playing</a></p>
</body>
</html>`
