package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mzyy94/ptpcam/internal/camera"
	"github.com/mzyy94/ptpcam/internal/config"
	"github.com/mzyy94/ptpcam/internal/ptpip"
	"github.com/mzyy94/ptpcam/internal/trace"
)

// connect opens a session using the resolved settings. The returned func
// closes the session and the trace file.
func (c *cli) connect(ctx context.Context) (*camera.Camera, func(), error) {
	s := c.settings
	if s.Host == "" {
		return nil, nil, errors.New("no camera address: run `ptpcam discover --save` or pass --host")
	}

	id, stored := ptpip.ParseIdentity(s.GUID, s.FriendlyName)
	if !stored {
		// Keep the GUID so the camera recognizes this client next time.
		if err := c.store.Modify(func(st *config.Settings) { st.GUID = id.GUID.String() }); err != nil {
			slog.Warn("failed to save client GUID", "err", err)
		}
	}

	tracers := []trace.Tracer{trace.Logger{}}
	var rec *trace.FileRecorder
	if s.TracePath != "" {
		var err error
		rec, err = trace.NewFileRecorder(s.TracePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open trace file: %w", err)
		}
		tracers = append(tracers, rec)
	}

	cam, err := camera.Connect(ctx, ptpip.Options{
		Host:              s.Host,
		Port:              s.Port,
		Identity:          id,
		HeartbeatInterval: s.HeartbeatInterval,
		Tracer:            trace.Tee(tracers...),
	}, camera.Options{
		FocusTimeout:   s.FocusTimeout,
		PollInterval:   s.PollInterval,
		RequestTimeout: s.RequestTimeout,
	})
	if err != nil {
		if rec != nil {
			rec.Close()
		}
		return nil, nil, err
	}
	return cam, func() {
		cam.Close()
		if rec != nil {
			rec.Close()
		}
	}, nil
}

func (c *cli) withCamera(ctx context.Context, fn func(context.Context, *camera.Camera) error) error {
	cam, closeFn, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, cam)
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

type settingOutput struct {
	Setting   string   `yaml:"setting"`
	Current   string   `yaml:"current"`
	Available []string `yaml:"available,omitempty"`
}

type describer interface {
	Describe() (current string, available []string)
}

func describe(name string, v any) settingOutput {
	if d, ok := v.(describer); ok {
		cur, avail := d.Describe()
		return settingOutput{Setting: name, Current: cur, Available: avail}
	}
	return settingOutput{Setting: name, Current: fmt.Sprint(v)}
}

func settingNames() string {
	names := make([]string, len(camera.Settings))
	for i, s := range camera.Settings {
		names[i] = s.Name
	}
	return strings.Join(names, ", ")
}

func (c *cli) discoverCmd() *cobra.Command {
	var (
		timeout time.Duration
		save    bool
	)
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find PTP-IP cameras on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cams, err := ptpip.FindCameras(cmd.Context(), ptpip.DiscoveryOptions{Timeout: timeout})
			if err != nil {
				return fmt.Errorf("discovery failed: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(cams) == 0 {
				fmt.Fprintln(out, "No cameras found.")
				return nil
			}
			if err := printYAML(out, cams); err != nil {
				return err
			}
			if save {
				first := cams[0]
				if err := c.store.Modify(func(s *config.Settings) {
					s.Host = first.Host
					s.Port = first.Port
				}); err != nil {
					return fmt.Errorf("failed to save config: %w", err)
				}
				fmt.Fprintf(out, "Saved %s (%s) to %s\n", first.Name, first.Addr(), c.store.Path())
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "how long to browse")
	cmd.Flags().BoolVar(&save, "save", false, "store the first camera found as the default")
	return cmd
}

func (c *cli) getCmd() *cobra.Command {
	var available bool
	cmd := &cobra.Command{
		Use:   "get <setting>",
		Short: "Read a camera setting",
		Long:  "Read a camera setting. Settings: " + settingNames() + ".",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := camera.LookupSetting(args[0])
			if err != nil {
				return err
			}
			op := info.Get
			if available {
				if info.Available == "" {
					return fmt.Errorf("%s has no list of accepted values", info.Name)
				}
				op = info.Available
			}
			return c.withCamera(cmd.Context(), func(ctx context.Context, cam *camera.Camera) error {
				v, err := cam.Perform(ctx, camera.Request{Op: op})
				if err != nil {
					return fmt.Errorf("get %s: %w", info.Name, err)
				}
				return printYAML(cmd.OutOrStdout(), describe(info.Name, v))
			})
		},
	}
	cmd.Flags().BoolVarP(&available, "available", "a", false, "also list the values the camera accepts")
	return cmd
}

func (c *cli) setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <setting> <value>",
		Short: "Change a camera setting",
		Long:  "Change a camera setting. Settings: " + settingNames() + ".",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := camera.LookupSetting(args[0])
			if err != nil {
				return err
			}
			if info.Set == "" {
				return fmt.Errorf("%s is read-only", info.Name)
			}
			v, err := info.Parse(args[1])
			if err != nil {
				return err
			}
			return c.withCamera(cmd.Context(), func(ctx context.Context, cam *camera.Camera) error {
				_, err := cam.Perform(ctx, camera.Request{Op: info.Set, Payload: v})
				var amb *camera.AmbiguousValueError
				if errors.As(err, &amb) {
					return fmt.Errorf("%w; choose one with `ptpcam set drive-mode <mode>`", err)
				}
				if err != nil {
					return fmt.Errorf("set %s: %w", info.Name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s set to %v\n", info.Name, v)
				return nil
			})
		},
	}
}

type captureOutput struct {
	Focus        string   `yaml:"focus"`
	ObjectHandle string   `yaml:"objectHandle,omitempty"`
	Trace        []string `yaml:"trace"`
}

func (c *cli) captureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capture",
		Short: "Take a picture, waiting for autofocus when enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withCamera(cmd.Context(), func(ctx context.Context, cam *camera.Camera) error {
				res, err := camera.Execute(ctx, cam.Dispatcher, camera.TakePicture, camera.None{})
				if err != nil {
					return fmt.Errorf("capture: %w", err)
				}
				out := captureOutput{Focus: res.Focus.String()}
				if res.ObjectHandle != nil {
					out.ObjectHandle = fmt.Sprintf("0x%08X", *res.ObjectHandle)
				}
				for _, s := range res.Trace {
					out.Trace = append(out.Trace, s.String())
				}
				return printYAML(cmd.OutOrStdout(), out)
			})
		},
	}
}

func (c *cli) halfPressCmd() *cobra.Command {
	var cancel bool
	cmd := &cobra.Command{
		Use:   "half-press",
		Short: "Press the shutter button halfway, or release it with --cancel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			command := camera.HalfPressShutter
			if cancel {
				command = camera.CancelHalfPressShutter
			}
			return c.withCamera(cmd.Context(), func(ctx context.Context, cam *camera.Camera) error {
				if _, err := camera.Execute(ctx, cam.Dispatcher, command, camera.None{}); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&cancel, "cancel", false, "release the half-pressed shutter")
	return cmd
}

func (c *cli) callCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call <operation>",
		Short: "Invoke an operation without payload by name, e.g. getEvent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withCamera(cmd.Context(), func(ctx context.Context, cam *camera.Camera) error {
				v, err := cam.Perform(ctx, camera.Request{Op: camera.Op(args[0])})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch v := v.(type) {
				case camera.None:
					fmt.Fprintln(out, "ok")
					return nil
				case camera.Event:
					return printYAML(out, v.Summary())
				default:
					return printYAML(out, describe(args[0], v))
				}
			})
		},
	}
}

func (c *cli) eventsCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print camera settings whenever the camera reports a change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			return c.withCamera(cmd.Context(), func(ctx context.Context, cam *camera.Camera) error {
				if once {
					ev, err := cam.Snapshot(ctx)
					if err != nil {
						return err
					}
					return printYAML(out, ev.Summary())
				}
				var printErr error
				err := cam.Watch(ctx, func(ev camera.Event) {
					fmt.Fprintln(out, "---")
					if err := printYAML(out, ev.Summary()); err != nil && printErr == nil {
						printErr = err
					}
				})
				if err != nil {
					return err
				}
				return printErr
			})
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "print the current settings and exit")
	return cmd
}

func (c *cli) traceCmd() *cobra.Command {
	var (
		channel   string
		direction string
		payload   bool
	)
	cmd := &cobra.Command{
		Use:   "trace <file>",
		Short: "Print a packet trace recorded with --trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := trace.Filter{Channel: channel}
			switch strings.ToLower(direction) {
			case "":
			case "in":
				d := trace.DirectionIn
				filter.Direction = &d
			case "out":
				d := trace.DirectionOut
				filter.Direction = &d
			default:
				return fmt.Errorf("invalid direction %q (in or out)", direction)
			}

			r, err := trace.NewReader(args[0], filter)
			if err != nil {
				return err
			}
			defer r.Close()

			out := cmd.OutOrStdout()
			for {
				rec, err := r.Next()
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return fmt.Errorf("read trace: %w", err)
				}
				fmt.Fprintln(out, rec.String())
				if payload && len(rec.Payload) > 0 {
					fmt.Fprint(out, hex.Dump(rec.Payload))
				}
			}
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "", "only packets of this channel: command or event")
	cmd.Flags().StringVar(&direction, "direction", "", "only packets in this direction: in or out")
	cmd.Flags().BoolVar(&payload, "payload", false, "hex dump payloads")
	return cmd
}

func (c *cli) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printYAML(cmd.OutOrStdout(), struct {
				Path     string          `yaml:"path"`
				Settings config.Settings `yaml:"settings"`
			}{c.store.Path(), c.settings})
		},
	})
	return cmd
}
