// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package curriculum loads question tracks from a Starlark configuration
// file. A curriculum declares track(...) values in a top-level tracks list:
//
//	tracks = [
//	    track(
//	        name = "python",
//	        summary = "General Python practice",
//	        prompt = "Stick to the standard library.",
//	    ),
//	]
//
// When no file is given, an embedded default curriculum is used.
package curriculum

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

//go:embed default.star
var defaultConfig string

// Track is a named family of questions with its own generation guidance.
type Track struct {
	Name    string
	Summary string
	Prompt  string
}

func (t *Track) String() string        { return fmt.Sprintf("<track name=%q>", t.Name) }
func (t *Track) Type() string          { return "track" }
func (t *Track) Freeze()               {} // immutable
func (t *Track) Truth() starlark.Bool  { return starlark.Bool(t.Name != "") }
func (t *Track) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: %s", t.Type()) }

func trackBuiltin(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 0 {
		return nil, errors.New("unexpected positional arguments")
	}
	t := new(Track)
	if err := starlark.UnpackArgs("track", args, kwargs,
		"name", &t.Name,
		"summary?", &t.Summary,
		"prompt?", &t.Prompt,
	); err != nil {
		return nil, err
	}
	return t, nil
}

// Curriculum is a parsed set of tracks, in declaration order.
type Curriculum struct {
	tracks []*Track
	byName map[string]*Track
}

// Parse parses a Starlark curriculum. filename is used in error messages.
func Parse(filename, config string, logf func(format string, args ...any)) (*Curriculum, error) {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	globals, err := starlark.ExecFileOptions(
		&syntax.FileOptions{
			TopLevelControl: true,
		},
		&starlark.Thread{
			Print: func(_ *starlark.Thread, msg string) { logf("%s", msg) },
		},
		filename,
		config,
		starlark.StringDict{
			"track": starlark.NewBuiltin("track", trackBuiltin),
		},
	)
	if err != nil {
		return nil, err
	}

	tracksList, ok := globals["tracks"].(*starlark.List)
	if !ok {
		return nil, errors.New("tracks must be defined and be a list")
	}

	c := &Curriculum{byName: make(map[string]*Track)}
	for elem := range tracksList.Elements() {
		t, ok := elem.(*Track)
		if !ok {
			continue
		}
		if t.Name == "" {
			return nil, errors.New("track with empty name")
		}
		if _, dup := c.byName[t.Name]; dup {
			return nil, fmt.Errorf("duplicate track %q", t.Name)
		}
		c.tracks = append(c.tracks, t)
		c.byName[t.Name] = t
	}
	if len(c.tracks) == 0 {
		return nil, errors.New("curriculum has no tracks")
	}
	return c, nil
}

var defaultCurriculum = sync.OnceValue(func() *Curriculum {
	c, err := Parse("default.star", defaultConfig, nil)
	if err != nil {
		panic(fmt.Sprintf("parsing embedded curriculum: %v", err))
	}
	return c
})

// Default returns the embedded default curriculum.
func Default() *Curriculum { return defaultCurriculum() }

// Track looks up a track by name.
func (c *Curriculum) Track(name string) (*Track, bool) {
	t, ok := c.byName[name]
	return t, ok
}

// Names returns all track names in declaration order.
func (c *Curriculum) Names() []string {
	names := make([]string, 0, len(c.tracks))
	for _, t := range c.tracks {
		names = append(names, t.Name)
	}
	return names
}
