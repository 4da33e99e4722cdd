package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nekodylan/OVL-MD/internal/core"
	"github.com/nekodylan/OVL-MD/internal/transport"
	"github.com/nekodylan/OVL-MD/internal/transport/transporttest"
	"github.com/nekodylan/OVL-MD/internal/wa"
)

func noop(context.Context, string, transport.Client, *Options) error { return nil }

func TestRegisterAndLookup(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(Descriptor{Name: "Menu", Aliases: []string{"HELP", "menu", ""}, Handler: noop}))
	require.NoError(t, r.Register(Descriptor{Name: "ping", Handler: noop}))

	d, ok := r.Lookup("MENU")
	require.True(t, ok)
	assert.Equal(t, "menu", d.Name)
	assert.Equal(t, []string{"help"}, d.Aliases)

	d, ok = r.Lookup("help")
	require.True(t, ok)
	assert.Equal(t, "menu", d.Name)

	_, ok = r.Lookup("nope")
	assert.False(t, ok)
	_, ok = r.Lookup("  ")
	assert.False(t, ok)

	assert.Equal(t, 2, r.Len())
	names := []string{}
	for _, d := range r.List() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"menu", "ping"}, names)
}

func TestRegisterRejectsDuplicatesAndInvalid(t *testing.T) {
	obs, logs := observer.New(zap.WarnLevel)
	r := New(zap.New(obs))
	require.NoError(t, r.Register(Descriptor{Name: "ban", Handler: noop, Source: "a.yaml"}))

	err := r.Register(Descriptor{Name: "BAN", Handler: noop, Source: "b.yaml"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, 1, logs.FilterMessage("duplicate command rejected").Len())

	assert.Error(t, r.Register(Descriptor{Name: "", Handler: noop}))
	assert.Error(t, r.Register(Descriptor{Name: "x"}))
	assert.Equal(t, 1, r.Len())
}

func TestAliasCollisionFirstRegisteredWins(t *testing.T) {
	obs, logs := observer.New(zap.WarnLevel)
	r := New(zap.New(obs))
	require.NoError(t, r.Register(Descriptor{Name: "kick", Aliases: []string{"remove"}, Handler: noop}))
	require.NoError(t, r.Register(Descriptor{Name: "remove", Handler: noop}))
	require.NoError(t, r.Register(Descriptor{Name: "boot", Aliases: []string{"kick"}, Handler: noop}))

	d, ok := r.Lookup("remove")
	require.True(t, ok)
	assert.Equal(t, "kick", d.Name)
	d, _ = r.Lookup("kick")
	assert.Equal(t, "kick", d.Name)
	assert.Equal(t, 2, logs.FilterMessage("alias shadowed by earlier command").Len())
}

func TestCategories(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(Descriptor{Name: "ban", Category: "Owner", Handler: noop}))
	require.NoError(t, r.Register(Descriptor{Name: "ping", Handler: noop}))
	require.NoError(t, r.Register(Descriptor{Name: "addsudo", Category: "Owner", Handler: noop}))

	order, names := r.Categories()
	assert.Equal(t, []string{"Owner", "Divers"}, order)
	assert.Equal(t, []string{"ban", "addsudo"}, names["Owner"])
}

const groupManifest = `
category: Groupe
commands:
  - name: antilink
    react: "🔗"
    description: Configure l'antilien
  - name: welcome
    aliases: [bienvenue]
    handler: groupevent
  - name: ghost
    handler: missing
`

func TestLoaderLoadFS(t *testing.T) {
	r := New(nil)
	l := &Loader{Registry: r, Catalog: Catalog{"antilink": noop, "groupevent": noop, "setvar": noop}}
	fsys := fstest.MapFS{
		"10-group.yaml": {Data: []byte(groupManifest)},
		"20-broken.yml": {Data: []byte("commands: [::")},
		"30-render.yml": {Data: []byte("category: Render\ncommands:\n  - name: setvar\n    premium: true\n")},
		"40-empty.yaml": {Data: []byte("category: Rien\n")},
		"README.md":     {Data: []byte("not a manifest")},
	}

	added, err := l.LoadFS(fsys, "builtin")
	require.NoError(t, err)
	assert.Equal(t, 3, added)

	d, ok := r.Lookup("bienvenue")
	require.True(t, ok)
	assert.Equal(t, "welcome", d.Name)
	assert.Equal(t, "Groupe", d.Category)
	assert.Equal(t, "builtin/10-group.yaml", d.Source)

	d, ok = r.Lookup("setvar")
	require.True(t, ok)
	assert.True(t, d.PremiumOnly)
	assert.Equal(t, "Render", d.Category)

	_, ok = r.Lookup("ghost")
	assert.False(t, ok)

	again, err := l.LoadFS(fsys, "builtin")
	require.NoError(t, err)
	assert.Zero(t, again)
	assert.Equal(t, 3, r.Len())
}

func TestLoaderLoadDirMissing(t *testing.T) {
	l := &Loader{Registry: New(nil)}
	n, err := l.LoadDir("")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = l.LoadDir(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestWatchLoadsNewManifests(t *testing.T) {
	dir := t.TempDir()
	r := New(nil)
	l := &Loader{Registry: r, Catalog: Catalog{"ping": noop}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, l.Watch(ctx, dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ping.yaml"), []byte("commands:\n  - name: ping\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	require.Eventually(t, func() bool {
		_, ok := r.Lookup("ping")
		return ok
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, 1, r.Len())
}

func TestOptionsFromContext(t *testing.T) {
	fake := transporttest.New("777@s.whatsapp.net")
	raw := &wa.WebMessage{Key: wa.MessageKey{RemoteJID: "1@g.us", ID: "M1"}}
	msg := &core.MessageContext{
		Sender:       "555@s.whatsapp.net",
		Origin:       "1@g.us",
		IsGroup:      true,
		PushName:     "Awa",
		QuotedAuthor: "666:3@s.whatsapp.net",
		Raw:          raw,
	}
	meta := wa.GroupMetadata{ID: "1@g.us", Subject: "OVL", Participants: []wa.Participant{
		{ID: "555@s.whatsapp.net", Admin: "admin"},
		{ID: "666@s.whatsapp.net"},
	}}
	opts := NewOptions(msg, core.Invocation{Name: "ban", Args: []string{"x"}}, core.Flags{IsGroupAdmin: true}, meta, "!", "777@s.whatsapp.net", fake)

	assert.Equal(t, "OVL", opts.GroupName)
	assert.Equal(t, []string{"555@s.whatsapp.net"}, opts.GroupAdmins)
	assert.Equal(t, "777", opts.BotNumber)
	assert.Equal(t, "666@s.whatsapp.net", opts.Target())

	require.NoError(t, opts.Reply(context.Background(), "ok"))
	calls := fake.Calls("SendMessage")
	require.Len(t, calls, 1)
	assert.Same(t, raw, calls[0].Options.Quoted)
	assert.Equal(t, "ok", calls[0].Content.Text)
}
