// Package persistencetest contains behaviour every persistence gateway must share.
package persistencetest

import (
	"context"
	"fmt"
	"testing"

	"go.viam.com/test"

	"go.reforestar.dev/planting/persistence"
)

// Record returns a well-formed record named name whose translation column encodes i.
func Record(name string, i int) persistence.TreeRecord {
	return persistence.TreeRecord{
		Name:   name,
		First:  "1;0;0;0",
		Second: "0;1;0;0",
		Third:  "0;0;1;0",
		Forth:  fmt.Sprintf("%d;0;-1.5;1", i),
	}
}

// TestGateway exercises gw against the gateway contract. project must not exist yet.
func TestGateway(t *testing.T, gw persistence.Gateway, project string) {
	t.Helper()
	ctx := context.Background()

	t.Run("unknown project is empty", func(t *testing.T) {
		count, err := gw.TreeCount(ctx, project)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, count, test.ShouldEqual, 0)

		recs, err := gw.ReadTrees(ctx, project)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, recs, test.ShouldBeEmpty)

		loc, err := gw.ReadLocation(ctx, project)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, loc, test.ShouldBeNil)
	})

	t.Run("trees are read in index order", func(t *testing.T) {
		// Written out of order on purpose.
		for _, i := range []int{2, 0, 1} {
			test.That(t, gw.WriteTree(ctx, project, i, Record("quercus_suber", i)), test.ShouldBeNil)
		}
		count, err := gw.TreeCount(ctx, project)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, count, test.ShouldEqual, 3)

		recs, err := gw.ReadTrees(ctx, project)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, recs, test.ShouldResemble, []persistence.TreeRecord{
			Record("quercus_suber", 0), Record("quercus_suber", 1), Record("quercus_suber", 2),
		})
	})

	t.Run("writing an existing index replaces it", func(t *testing.T) {
		test.That(t, gw.WriteTree(ctx, project, 1, Record("pinus_pinea", 1)), test.ShouldBeNil)
		count, err := gw.TreeCount(ctx, project)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, count, test.ShouldEqual, 3)

		recs, err := gw.ReadTrees(ctx, project)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, recs[1].Name, test.ShouldEqual, "pinus_pinea")
	})

	t.Run("projects are isolated", func(t *testing.T) {
		other := project + "-other"
		test.That(t, gw.WriteTree(ctx, other, 0, Record("pinus_pinea", 7)), test.ShouldBeNil)
		count, err := gw.TreeCount(ctx, other)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, count, test.ShouldEqual, 1)
		count, err = gw.TreeCount(ctx, project)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, count, test.ShouldEqual, 3)
	})

	t.Run("location is replaced", func(t *testing.T) {
		test.That(t, gw.WriteLocation(ctx, project, persistence.Location{Longitude: -8.8, Latitude: 39.7}), test.ShouldBeNil)
		test.That(t, gw.WriteLocation(ctx, project, persistence.Location{Longitude: -8.81, Latitude: 39.74}), test.ShouldBeNil)
		loc, err := gw.ReadLocation(ctx, project)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, loc, test.ShouldNotBeNil)
		test.That(t, *loc, test.ShouldResemble, persistence.Location{Longitude: -8.81, Latitude: 39.74})
	})
}
