// Command sdfgen-demo builds the I2C reactor scenario end to end
// (create a system, wire up an I2C subsystem with one client, connect,
// emit XML and binary configs) to exercise the public sdfgen API.
package main

import (
	"context"
	"fmt"
	"os"

	_ "github.com/jimmicro/version"
	cli "github.com/urfave/cli/v2"

	"github.com/jimyag/sdfgen/internal/buildcfg"
	"github.com/jimyag/sdfgen/pkg/arch"
	"github.com/jimyag/sdfgen/pkg/sddf/i2c"
	"github.com/jimyag/sdfgen/pkg/sdfgen"
	"github.com/jimyag/sdfgen/pkg/sdmodel"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	var outputDir, profilePath string

	return &cli.App{
		Name:  "sdfgen-demo",
		Usage: "build the I2C reactor example system description",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "output",
				Usage:       "directory to write sdf.xml and binary configs into",
				Value:       "build",
				Destination: &outputDir,
				EnvVars:     []string{"SDFGEN_OUTPUT_DIR"},
			},
			&cli.StringFlag{
				Name:        "board-profile",
				Usage:       "optional TOML board profile path",
				Destination: &profilePath,
			},
		},
		Action: func(c *cli.Context) error {
			return runI2cReactor(c.Context, outputDir, profilePath)
		},
	}
}

func runI2cReactor(ctx context.Context, outputDir, profilePath string) error {
	cfg, err := buildcfg.New(profilePath)
	if err != nil {
		return err
	}
	if outputDir == "" {
		outputDir = cfg.OutputDir
	}

	sd := sdfgen.NewSystem(arch.AArch64)

	driver, err := sd.AddPD("i2c_reactor_driver", "i2c_reactor_driver.elf", sdmodel.WithPriority(200))
	if err != nil {
		return err
	}
	virt, err := sd.AddPD("i2c_virt", "i2c_virt.elf", sdmodel.WithPriority(199))
	if err != nil {
		return err
	}
	client, err := sd.AddPD("i2c_reactor_client", "i2c_reactor_client.elf", sdmodel.WithPriority(198))
	if err != nil {
		return err
	}

	reg := sdfgen.NewRegistry()
	if err := sdfgen.Probe(ctx, reg, cfg.DriverRepo); err != nil {
		return err
	}

	sub, err := i2c.New(sd, nil, driver, virt, reg, i2c.Options{})
	if err != nil {
		return err
	}
	if err := sub.AddClient(client, "i2c_reactor_client", i2c.ClientOptions{}); err != nil {
		return err
	}
	if err := sdfgen.Connect(ctx, "i2c", sub); err != nil {
		return err
	}

	xml, err := sdfgen.ToXML(sd)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(outputDir+"/sdf.xml", []byte(xml), 0o644); err != nil {
		return err
	}

	return sdfgen.SerialiseConfig(ctx, "i2c", sub, outputDir)
}
