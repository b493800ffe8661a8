// Package configuration holds the settings of the score binaries.  Fields
// are read from flags, environment and JSON files by goconfig; the usage tags
// become the flag help.
package configuration

import (
	"fmt"
	"strings"

	"github.com/iossifovlab/scoreget/score"
	"github.com/pkg/profile"
)

// Server configures score-server.
type Server struct {
	HttpAddr string `usage:"HTTP address"`
	Dir      string `usage:"directory that contains score files and their configs"`
	Bucket   string `usage:"if set, serves score files from this GCS bucket instead of Dir"`
	Public   bool   `usage:"read the bucket without credentials"`
	Scores   string `usage:"if set, restricts the server to a comma-separated list of score file IDs"`

	IdleFiles int        `usage:"open score files kept per ID between requests"`
	Access    Thresholds `usage:"query window tuning"`

	HttpsCert string `usage:"HTTPS certificate file"`
	HttpsKey  string `usage:"HTTPS key file"`

	// Enable or disable anonymous usage tracking.
	//
	// If enabled, anonymous information about requests handled by the server
	// is logged to Google via Google Analytics.  No user identifying
	// information is ever sent.
	TrackUsage bool `usage:"anonymous usage tracking"`

	Profile    string `usage:"write a profile to the working directory: cpu | mem | block | trace"`
	ShowConfig bool   `usage:"print config"`
	Version    bool   `usage:"show version and exit"`
}

// Thresholds tunes the switch between the sequential and direct access
// paths of score files.
type Thresholds struct {
	Switch   int `usage:"largest distance from the previous query answered from the query window"`
	LongJump int `usage:"largest gap the query window is extended across instead of repositioned"`
}

// Query configures score-query.
type Query struct {
	File    string `usage:"score file: a path, an object in Bucket or an ID on Server"`
	Region  string `usage:"region to query: chrom, chrom:begin or chrom:begin-end"`
	Highest bool   `usage:"print the highest value of each score instead of all values"`
	Config  string `usage:"score file config, defaults to the score file name plus .json"`

	Bucket string `usage:"if set, reads the score file from this GCS bucket"`
	Public bool   `usage:"read the bucket without credentials"`
	Token  string `usage:"OAuth2 bearer token for the bucket, instead of application default credentials"`

	Server string `usage:"if set, queries this score-server URL instead of reading the file"`

	Profile string `usage:"write a profile to the working directory: cpu | mem | block | trace"`
	Version bool   `usage:"show version and exit"`
}

// Default returns the server defaults.
func Default() Server {
	return Server{
		HttpAddr:  ":8080",
		Dir:       ".",
		IdleFiles: 4,
		Access: Thresholds{
			Switch:   score.AccessSwitchThreshold,
			LongJump: score.LongJumpThreshold,
		},
	}
}

// DefaultQuery returns the query defaults.
func DefaultQuery() Query {
	return Query{}
}

// Validate reports missing or conflicting query settings.
func (c *Query) Validate() error {
	switch {
	case c.File == "":
		return fmt.Errorf("no score file given")
	case c.Region == "":
		return fmt.Errorf("no region given")
	case c.Server != "" && c.Bucket != "":
		return fmt.Errorf("Server and Bucket are exclusive")
	}
	_, err := ProfileMode(c.Profile)
	return err
}

// IDs returns the whitelisted score file IDs.
func (c *Server) IDs() []string {
	var ids []string
	for _, id := range strings.Split(c.Scores, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// ScoreOptions returns the score file options the server opens files with.
func (c *Server) ScoreOptions() []score.Option {
	return []score.Option{score.WithThresholds(c.Access.Switch, c.Access.LongJump)}
}

// Validate reports settings that cannot work together.
func (c *Server) Validate() error {
	if (c.HttpsCert == "") != (c.HttpsKey == "") {
		return fmt.Errorf("both HttpsCert and HttpsKey are required for HTTPS")
	}
	if c.IdleFiles < 0 {
		return fmt.Errorf("invalid IdleFiles %d", c.IdleFiles)
	}
	if c.Access.Switch < 0 || c.Access.LongJump < 0 {
		return fmt.Errorf("invalid access thresholds %+v", c.Access)
	}
	_, err := ProfileMode(c.Profile)
	return err
}

// ProfileMode maps a profile name to its profile.Start option.  The empty
// name means no profiling.
func ProfileMode(name string) (func(*profile.Profile), error) {
	switch strings.ToLower(name) {
	case "":
		return nil, nil
	case "cpu":
		return profile.CPUProfile, nil
	case "mem":
		return profile.MemProfile, nil
	case "block":
		return profile.BlockProfile, nil
	case "trace":
		return profile.TraceProfile, nil
	}
	return nil, fmt.Errorf("unknown profile %q", name)
}

// StartProfile starts the named profile, writing it to the working
// directory.  The returned function stops it.
func StartProfile(name string) (func(), error) {
	mode, err := ProfileMode(name)
	if err != nil || mode == nil {
		return func() {}, err
	}
	p := profile.Start(mode, profile.ProfilePath("."), profile.NoShutdownHook)
	return p.Stop, nil
}
