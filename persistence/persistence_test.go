package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.reforestar.dev/planting/logging"
	"go.reforestar.dev/planting/scene"
	"go.reforestar.dev/planting/spatialmath"
)

func TestEncodeDecodeAnchor(t *testing.T) {
	pose := spatialmath.ScaleBasis(
		spatialmath.RotateAboutNormal(spatialmath.NewPoseFromTranslation(r3.Vector{X: 1.25, Y: -1.5, Z: -3}), 0.7),
		0.9,
	)
	anchor := scene.NewNamedAnchor("quercus_suber", pose)

	rec := EncodeAnchor(anchor)
	test.That(t, rec.Name, test.ShouldEqual, "quercus_suber")
	test.That(t, rec.Forth, test.ShouldEqual, "1.25;-1.5;-3;1")

	decoded, err := DecodeRecord(0, rec)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, decoded.Name, test.ShouldEqual, anchor.Name)
	test.That(t, decoded.ID, test.ShouldNotEqual, anchor.ID)
	test.That(t, decoded.Pose.Components(), test.ShouldResemble, pose.Components())
}

func TestDecodeMalformed(t *testing.T) {
	good := EncodeAnchor(scene.NewNamedAnchor("quercus_suber", spatialmath.NewZeroPose()))

	badColumn := good
	badColumn.Third = "0;0;one;0"
	_, err := DecodeRecord(4, badColumn)
	var malformed *MalformedRecordError
	test.That(t, errors.As(err, &malformed), test.ShouldBeTrue)
	test.That(t, malformed.Index, test.ShouldEqual, 4)
	test.That(t, malformed.Field, test.ShouldEqual, "third")
	test.That(t, errors.Is(err, ErrMalformedRecord), test.ShouldBeTrue)
	test.That(t, errors.Is(err, spatialmath.ErrMalformedColumn), test.ShouldBeTrue)

	shortColumn := good
	shortColumn.First = "1;0;0"
	_, err = DecodeRecord(0, shortColumn)
	test.That(t, errors.As(err, &malformed), test.ShouldBeTrue)
	test.That(t, malformed.Field, test.ShouldEqual, "first")

	noName := good
	noName.Name = ""
	_, err = DecodeRecord(0, noName)
	test.That(t, errors.Is(err, scene.ErrEmptyName), test.ShouldBeTrue)
}

func TestDecodeRecordsSkipsMalformed(t *testing.T) {
	good := EncodeAnchor(scene.NewNamedAnchor("quercus_suber", spatialmath.NewZeroPose()))
	bad := good
	bad.Forth = ""

	anchors, malformed := DecodeRecords([]TreeRecord{good, bad, good})
	test.That(t, anchors, test.ShouldHaveLength, 2)
	test.That(t, malformed, test.ShouldHaveLength, 1)
	var mre *MalformedRecordError
	test.That(t, errors.As(malformed[0], &mre), test.ShouldBeTrue)
	test.That(t, mre.Index, test.ShouldEqual, 1)
	test.That(t, mre.Field, test.ShouldEqual, "forth")

	anchors, malformed = DecodeRecords(nil)
	test.That(t, anchors, test.ShouldBeEmpty)
	test.That(t, malformed, test.ShouldBeEmpty)
}

func TestRemoteError(t *testing.T) {
	test.That(t, NewRemoteError("write tree", nil), test.ShouldBeNil)

	cause := errors.New("connection refused")
	err := NewRemoteError("write tree", cause)
	test.That(t, errors.Is(err, ErrRemoteUnavailable), test.ShouldBeTrue)
	test.That(t, errors.Is(err, cause), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "write tree")
}

func TestConfigValidate(t *testing.T) {
	conf := DefaultConfig()
	test.That(t, conf.Validate("persistence"), test.ShouldBeNil)
	d, err := conf.TimeoutDuration()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d, test.ShouldEqual, 10*time.Second)

	for _, tc := range []struct {
		name string
		conf Config
		msg  string
	}{
		{"missing backend", Config{}, "backend"},
		{"unknown backend", Config{Backend: "postgres"}, "unknown backend"},
		{"sqlite without path", Config{Backend: BackendSQLite}, "path"},
		{"mongodb without uri", Config{Backend: BackendMongoDB, Database: "planting"}, "uri"},
		{"mongodb without database", Config{Backend: BackendMongoDB, URI: "mongodb://localhost"}, "database"},
		{"bad timeout", Config{Backend: BackendMemory, Timeout: "soon"}, "timeout"},
		{"negative timeout", Config{Backend: BackendMemory, Timeout: "-1s"}, "positive"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.conf.Validate("persistence")
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.msg)
		})
	}

	unset := Config{Backend: BackendMemory}
	d, err = unset.TimeoutDuration()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d, test.ShouldEqual, DefaultTimeout)
}

type nopGateway struct{ Gateway }

func TestRegistry(t *testing.T) {
	logger := logging.NewTestLogger(t)

	// No backend package is imported here, so nothing is registered under the memory name.
	_, err := Open(context.Background(), DefaultConfig(), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "not registered")

	var opened Config
	RegisterBackend(BackendMemory, func(_ context.Context, conf Config, _ logging.Logger) (Gateway, error) {
		opened = conf
		return nopGateway{}, nil
	})
	t.Cleanup(func() {
		registryMu.Lock()
		delete(registry, BackendMemory)
		registryMu.Unlock()
	})

	gw, err := Open(context.Background(), DefaultConfig(), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, gw, test.ShouldHaveSameTypeAs, nopGateway{})
	test.That(t, opened.Backend, test.ShouldEqual, BackendMemory)
	test.That(t, RegisteredBackends(), test.ShouldContain, BackendMemory)

	test.That(t, func() {
		RegisterBackend(BackendMemory, func(context.Context, Config, logging.Logger) (Gateway, error) { return nil, nil })
	}, test.ShouldPanic)
	test.That(t, func() { RegisterBackend("nil", nil) }, test.ShouldPanic)

	_, err = Open(context.Background(), Config{Backend: "postgres"}, logger)
	test.That(t, err, test.ShouldNotBeNil)
}
