package cli

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"go.reforestar.dev/planting/placement"
	"go.reforestar.dev/planting/scene"
	"go.reforestar.dev/planting/spatialmath"
	"go.reforestar.dev/planting/utils"
)

// LayoutAction prints the poses the placement engine computes for one touch point on an empty,
// level surface.
func LayoutAction(c *cli.Context) error {
	logger, cfg, err := loggerAndConfig(c)
	if err != nil {
		return err
	}
	engine, err := placement.NewEngine(cfg.Placement.EngineConfig(), newRand(c.Int64(flagSeed)), logger.Sublogger("placement"))
	if err != nil {
		return err
	}

	origin := spatialmath.NewPoseFromTranslation(r3.Vector{
		X: c.Float64(layoutFlagX),
		Y: c.Float64(layoutFlagY),
		Z: c.Float64(layoutFlagZ),
	})
	poses, err := engine.ComputeLayout(placement.Request{
		Origin:      origin,
		Count:       c.Uint(layoutFlagCount),
		ScaleFactor: c.Float64(layoutFlagScale),
	})
	if err != nil {
		return err
	}
	if len(poses) == 0 {
		return placement.ErrNoSpaceAvailable
	}
	fmt.Fprintln(c.App.Writer, posesTable(origin, poses))
	return nil
}

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	//nolint:gosec
	return rand.New(rand.NewSource(seed))
}

// posesTable renders one row per pose with its yaw relative to reference.
func posesTable(reference spatialmath.Pose, poses []spatialmath.Pose) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Translation", "Yaw", "Scale"})
	for i, pose := range poses {
		t.AppendRow(poseRow(i, reference, pose))
	}
	return t.Render()
}

func poseRow(i int, reference, pose spatialmath.Pose) table.Row {
	tra := pose.Translation()
	return table.Row{
		fmt.Sprintf("%d", i),
		fmt.Sprintf("X:%.2f, Y:%.2f, Z:%.2f", tra.X, tra.Y, tra.Z),
		fmt.Sprintf("%.1f", utils.RadToDeg(spatialmath.YawBetween(reference, pose))),
		fmt.Sprintf("%.3f", spatialmath.BasisScale(pose)),
	}
}

// anchorsTable renders placed anchors followed by pending ones.
func anchorsTable(placed, pending []scene.NamedAnchor) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Name", "Translation", "Yaw", "Scale", "State"})
	level := spatialmath.NewZeroPose()
	appendRows := func(anchors []scene.NamedAnchor, state string) {
		for i, a := range anchors {
			row := poseRow(i, level, a.Pose)
			t.AppendRow(table.Row{row[0], a.Name, row[1], row[2], row[3], state})
		}
	}
	appendRows(placed, "placed")
	appendRows(pending, "pending")
	t.AppendFooter(table.Row{"", "", "", "", "total", fmt.Sprintf("%d placed, %d pending", len(placed), len(pending))})
	return t.Render()
}
