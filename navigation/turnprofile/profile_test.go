package turnprofile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/loadlifter/aislenav/logging"
)

const sampleProfile = `{
  "deg_per_s": {"left": {"12.0": 180, "6": 60, "3": "fast", "9": 0}},
  "brake": {"left": {
    "opp60t0.06": 99,
    "run2_opp6_t0.06": 4.5,
    "opp6t0.08": 7,
    "opp6.0t0.10": 2,
    "oppXt0.06": 1
  }}
}`

func TestDegPerSecond(t *testing.T) {
	p, err := Parse([]byte(sampleProfile))
	test.That(t, err, test.ShouldBeNil)

	dps, ok := p.DegPerSecond(12)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, dps, test.ShouldEqual, 180.0)

	dps, ok = p.DegPerSecond(-6)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, dps, test.ShouldEqual, 60.0)

	_, ok = p.DegPerSecond(3)
	test.That(t, ok, test.ShouldBeFalse)
	_, ok = p.DegPerSecond(9)
	test.That(t, ok, test.ShouldBeFalse)
	_, ok = p.DegPerSecond(20)
	test.That(t, ok, test.ShouldBeFalse)

	var missing *Profile
	_, ok = missing.DegPerSecond(12)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestBrakeDeg(t *testing.T) {
	p, err := Parse([]byte(sampleProfile))
	test.That(t, err, test.ShouldBeNil)

	deg, ok := p.BrakeDeg(6, 0.06)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, deg, test.ShouldEqual, 4.5)

	deg, ok = p.BrakeDeg(-6, 0.08)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, deg, test.ShouldEqual, 7.0)

	deg, ok = p.BrakeDeg(6, 0.1)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, deg, test.ShouldEqual, 2.0)

	deg, ok = p.BrakeDeg(60, 0.06)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, deg, test.ShouldEqual, 99.0)

	_, ok = p.BrakeDeg(8, 0.06)
	test.That(t, ok, test.ShouldBeFalse)

	var missing *Profile
	_, ok = missing.BrakeDeg(6, 0.06)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	p, err := Load(filepath.Join(dir, "absent.json"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p, test.ShouldBeNil)

	p, err = Load("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p, test.ShouldBeNil)

	bad := filepath.Join(dir, "bad.json")
	test.That(t, os.WriteFile(bad, []byte("{"), 0o600), test.ShouldBeNil)
	_, err = Load(bad)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestStore(t *testing.T) {
	dir := t.TempDir()
	logger, observed := logging.NewObservedTestLogger(t)

	t.Run("lazy load", func(t *testing.T) {
		path := filepath.Join(dir, "turns.json")
		test.That(t, os.WriteFile(path, []byte(sampleProfile), 0o600), test.ShouldBeNil)
		store := NewStore(path, logger)
		test.That(t, store.Path(), test.ShouldEqual, path)

		test.That(t, os.WriteFile(path, []byte(`{"deg_per_s": {"left": {"12": 150}}}`), 0o600), test.ShouldBeNil)
		dps, ok := store.Profile().DegPerSecond(12)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, dps, test.ShouldEqual, 150.0)
	})

	t.Run("unparsable file is ignored", func(t *testing.T) {
		path := filepath.Join(dir, "broken.json")
		test.That(t, os.WriteFile(path, []byte("not json"), 0o600), test.ShouldBeNil)
		store := NewStore(path, logger)
		test.That(t, store.Profile(), test.ShouldBeNil)
		test.That(t, observed.FilterMessage("ignoring turn calibration").Len(), test.ShouldEqual, 1)
	})

	t.Run("static", func(t *testing.T) {
		p, err := Parse([]byte(sampleProfile))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, NewStaticStore(p, logger).Profile(), test.ShouldEqual, p)
		test.That(t, NewStaticStore(nil, logger).Profile(), test.ShouldBeNil)
	})
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "turns.json")
	test.That(t, os.WriteFile(path, []byte(`{"deg_per_s": {"left": {"12": 100}}}`), 0o600), test.ShouldBeNil)
	store := NewStore(path, logging.NewTestLogger(t))
	dps, _ := store.Profile().DegPerSecond(12)
	test.That(t, dps, test.ShouldEqual, 100.0)

	ctx, cancel := context.WithCancel(context.Background())
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- store.Watch(ctx, 10*time.Millisecond)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		// rewrite until the watcher has registered and picked the change up
		test.That(t, os.WriteFile(path, []byte(`{"deg_per_s": {"left": {"12": 200}}}`), 0o600), test.ShouldBeNil)
		time.Sleep(50 * time.Millisecond)
		if dps, _ := store.Profile().DegPerSecond(12); dps == 200 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("calibration was not reloaded")
		}
	}
	cancel()
	test.That(t, <-watchErr, test.ShouldBeNil)

	test.That(t, NewStore("", logging.NewTestLogger(t)).Watch(context.Background(), time.Millisecond), test.ShouldNotBeNil)
}
