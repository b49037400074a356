package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/raspberrypi-ui/lightdm-bullseye/config"
	"github.com/raspberrypi-ui/lightdm-bullseye/diag"
	"github.com/raspberrypi-ui/lightdm-bullseye/displaynum"
	"github.com/raspberrypi-ui/lightdm-bullseye/vtregistry"
	"github.com/raspberrypi-ui/lightdm-bullseye/xauth"
	"github.com/raspberrypi-ui/lightdm-bullseye/xdmcp"
	"github.com/raspberrypi-ui/lightdm-bullseye/xserver"
	"github.com/raspberrypi-ui/lightdm-bullseye/xsignal"
	"github.com/raspberrypi-ui/lightdm-bullseye/xversion"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "xseatd",
		Short: "X server supervision core for a display-manager seat daemon",
	}

	rootCmd.AddCommand(
		createProbeVersionCommand(),
		createAllocCommand(),
		createRunCommand(),
		createXDMCPSeatCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}

func createProbeVersionCommand() *cobra.Command {
	var xCommand string
	cmd := &cobra.Command{
		Use:   "probe-version",
		Short: "Run X -version and report the version string and whether it supports -listen tcp",
		RunE: func(cmd *cobra.Command, args []string) error {
			probe := xversion.New(xCommand)
			version := probe.Version(context.Background())
			if version == "" {
				fmt.Println("could not determine X server version")
				return nil
			}
			fmt.Printf("%v (supports -listen tcp: %v)\n", version, probe.Compare(context.Background(), 1, 17) >= 0)
			return nil
		},
	}
	cmd.Flags().StringVarP(&xCommand, "command", "c", "X", "X server binary to probe")
	return cmd
}

func createAllocCommand() *cobra.Command {
	var minimum int
	var count int
	cmd := &cobra.Command{
		Use:   "alloc",
		Short: "Reserve display numbers against /tmp/.X<n>-lock, reporting what was handed out",
		RunE: func(cmd *cobra.Command, args []string) error {
			alloc := displaynum.New(minimum)
			reserved := make([]int, 0, count)
			for i := 0; i < count; i++ {
				reserved = append(reserved, alloc.Reserve())
			}
			for _, n := range reserved {
				fmt.Printf(":%d\n", n)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&minimum, "minimum", "m", config.DefaultMinimumDisplayNumber, "minimum-display-number floor")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of display numbers to reserve")
	return cmd
}

func createRunCommand() *cobra.Command {
	var (
		configPath string
		command    string
		layout     string
		xdgSeat    string
		vt         int
		allowTCP   bool
		background string
		withAuth   bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Launch a local X server and wait for it to stop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			if err := xsignal.Init(); err != nil {
				return fmt.Errorf("failed preparing SIGUSR1 handshake: %w", err)
			}

			sink := diag.NewSink()
			server := xserver.New(xserver.Options{
				Allocator: displaynum.New(cfg.Int(config.Section, config.KeyMinimumDisplayNumber, config.DefaultMinimumDisplayNumber)),
				VT:        vtregistry.New(),
				Config:    cfg,
				Sink:      sink,
			})
			server.Command = command
			server.Layout = layout
			server.XDGSeat = xdgSeat
			server.AllowTCP = allowTCP
			server.Background = background
			if vt >= 0 {
				server.SetVT(vt)
			}
			if withAuth {
				record, err := xauth.NewRecord(server.Address(), fmt.Sprintf("%d", server.DisplayNumber()))
				if err != nil {
					return fmt.Errorf("failed generating authority: %w", err)
				}
				server.Authority = record
			}

			stopped := make(chan struct{})
			server.OnStart(func() {
				sink.Add(diag.SeverityInfo, "", fmt.Sprintf("x server %v is ready", server.Address()))
			})
			server.OnStop(func() { close(stopped) })

			if err := server.Start(cmd.Context()); err != nil {
				return fmt.Errorf("failed starting x server: %w", err)
			}

			signals := make(chan os.Signal, 1)
			signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-signals:
				server.Stop()
				<-stopped
			case <-stopped:
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a LightDM-style configuration file")
	cmd.Flags().StringVar(&command, "x-command", "X", "X server command line")
	cmd.Flags().StringVar(&layout, "layout", "", "server layout name")
	cmd.Flags().StringVar(&xdgSeat, "xdg-seat", "", "value for -seat")
	cmd.Flags().IntVar(&vt, "vt", -1, "virtual terminal to attach to, -1 for unset")
	cmd.Flags().BoolVar(&allowTCP, "allow-tcp", false, "allow TCP/IP connections")
	cmd.Flags().StringVar(&background, "background", "", "background colour/image spec")
	cmd.Flags().BoolVar(&withAuth, "with-auth", true, "generate and write a MIT-MAGIC-COOKIE authority file")
	return cmd
}

func createXDMCPSeatCommand() *cobra.Command {
	var peer string
	var displayNumber int
	cmd := &cobra.Command{
		Use:   "xdmcp-seat",
		Short: "Demonstrate binding an incoming XDMCP session to a single remote X server handle",
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := xauth.NewRecord(fmt.Sprintf("%v:%d", peer, displayNumber), fmt.Sprintf("%d", displayNumber))
			if err != nil {
				return err
			}

			seat := xdmcp.NewSeat(&xdmcp.IncomingSession{
				Authority:     record,
				PeerAddress:   peer,
				DisplayNumber: displayNumber,
			})

			first := seat.CreateDisplayServer(xdmcp.LoginSessionRequest{Type: "x"})
			second := seat.CreateDisplayServer(xdmcp.LoginSessionRequest{Type: "x"})
			rejected := seat.CreateDisplayServer(xdmcp.LoginSessionRequest{Type: "console"})

			fmt.Printf("first request:  %v\n", first.Address())
			fmt.Printf("second request: %v (same handle: %v)\n", second.Address(), first == second)
			fmt.Printf("console request rejected: %v\n", rejected == nil)
			return nil
		},
	}
	cmd.Flags().StringVar(&peer, "peer", "192.0.2.1", "stringified peer address of the XDMCP client")
	cmd.Flags().IntVar(&displayNumber, "display", 0, "display number requested by the XDMCP client")
	return cmd
}

func loadConfig(path string) (config.Reader, error) {
	if path == "" {
		return config.Empty(), nil
	}
	return config.Load(path)
}
