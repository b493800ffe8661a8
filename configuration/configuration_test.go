package configuration

import (
	"testing"

	"github.com/iossifovlab/scoreget/score"
	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, ":8080", c.HttpAddr)
	assert.Equal(t, score.AccessSwitchThreshold, c.Access.Switch)
	assert.Equal(t, score.LongJumpThreshold, c.Access.LongJump)
	assert.NoError(t, c.Validate())
	assert.Empty(t, c.IDs())
	assert.Len(t, c.ScoreOptions(), 1)
}

func TestServer_IDs(t *testing.T) {
	testCases := []struct {
		scores string
		want   []string
	}{
		{"", nil},
		{"phylop.tsv.gz", []string{"phylop.tsv.gz"}},
		{"a, b,,c ", []string{"a", "b", "c"}},
	}
	for _, tc := range testCases {
		t.Run(tc.scores, func(t *testing.T) {
			c := Server{Scores: tc.scores}
			assert.Equal(t, tc.want, c.IDs())
		})
	}
}

func TestServer_Validate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Server)
	}{
		{"certificate without key", func(c *Server) { c.HttpsCert = "cert.pem" }},
		{"key without certificate", func(c *Server) { c.HttpsKey = "key.pem" }},
		{"negative idle files", func(c *Server) { c.IdleFiles = -1 }},
		{"negative threshold", func(c *Server) { c.Access.LongJump = -5 }},
		{"unknown profile", func(c *Server) { c.Profile = "heap" }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.modify(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestProfileMode(t *testing.T) {
	for _, name := range []string{"cpu", "MEM", "block", "trace"} {
		mode, err := ProfileMode(name)
		assert.NoError(t, err, name)
		assert.NotNil(t, mode, name)
	}

	mode, err := ProfileMode("")
	assert.NoError(t, err)
	assert.Nil(t, mode)

	_, err = ProfileMode("gpu")
	assert.Error(t, err)

	stop, err := StartProfile("")
	assert.NoError(t, err)
	stop()
}

func TestQuery_Validate(t *testing.T) {
	valid := Query{File: "phylop.tsv.gz", Region: "1:10-20"}
	assert.NoError(t, valid.Validate())

	testCases := []struct {
		name   string
		modify func(*Query)
	}{
		{"no file", func(c *Query) { c.File = "" }},
		{"no region", func(c *Query) { c.Region = "" }},
		{"server and bucket", func(c *Query) { c.Server, c.Bucket = "http://localhost:8080", "scores" }},
		{"unknown profile", func(c *Query) { c.Profile = "heap" }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid
			tc.modify(&c)
			assert.Error(t, c.Validate())
		})
	}
}
