package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	domfb "github.com/kailas-cloud/circare/internal/domain/feedback"
	"github.com/kailas-cloud/circare/internal/domain/search"
	"github.com/kailas-cloud/circare/internal/domain/weights"
	"github.com/kailas-cloud/circare/internal/render/echarts"
	"github.com/kailas-cloud/circare/internal/usecase/navigator"
	"github.com/kailas-cloud/circare/internal/version"
)

// execute runs one command line and saves the session afterwards, also when
// the command failed.
func execute(out io.Writer, args []string) error {
	a := &app{out: out}
	root := newRootCmd(a)
	root.SetArgs(args)
	defer a.close()
	return root.Execute()
}

func newRootCmd(a *app) *cobra.Command {

	root := &cobra.Command{
		Use:           "circarectl",
		Short:         "Search the Arch-Circare corpus by image, weights and latent lens",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.open()
		},
	}
	root.SetOut(a.out)

	pf := root.PersistentFlags()
	pf.StringVar(&a.apiURL, "api", envOr(envAPIURL, defaultAPIURL), "search API base URL")
	pf.StringVar(&a.token, "token", os.Getenv(envAPIToken), "search API bearer token")
	pf.StringVar(&a.statePath, "state", defaultStatePath(), "local session state file")
	pf.DurationVar(&a.timeout, "timeout", defaultTimeout, "per-request timeout")
	pf.IntVar(&a.retries, "retries", 2, "retries for idempotent requests")
	pf.BoolVar(&a.asJSON, "json", false, "print JSON instead of tables")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newVersionCmd(a),
		newHealthCmd(a),
		newSessionCmd(a),
		newWeightsCmd(a),
		newSearchCmd(a),
		newLensCmd(a),
		newVoteCmd(a),
		newMapCmd(a),
	)
	return root
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintln(a.out, version.String())
		},
	}
}

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the search API answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.api.Ping(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "ok")
			return nil
		},
	}
}

func newSessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "session", Short: "Inspect or replace the local session"}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the session state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			v := s.View()
			if a.asJSON {
				return a.printJSON(v)
			}
			p := v.Percent
			fmt.Fprintf(a.out, "session  %s\nphase    %s\nweights  visual %d%%  spatial %d%%  attr %d%%\n",
				v.ID, v.Phase, p.Visual, p.Spatial, p.Attr)
			fmt.Fprintf(a.out, "query    ?%s\nlens     %d images\n", v.Query, len(v.LensIDs))
			if v.Reference.Kind != "" {
				fmt.Fprintf(a.out, "ref      %s %s%s%s\n", v.Reference.Kind, v.Reference.Filename, v.Reference.URL, v.Reference.ImageID)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rotate",
		Short: "Start a fresh session under a new id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := a.identity.Rotate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, id)
			return nil
		},
	})
	return cmd
}

func newWeightsCmd(a *app) *cobra.Command {
	var (
		raw    string
		preset string
		reset  bool
	)
	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Show or set the visual/spatial/attribute blend",
		Example: "  circarectl weights --raw 60,30,10\n" +
			"  circarectl weights --preset balanced",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			ws := s.Weights()
			switch {
			case reset:
				ws.Reset()
			case preset != "":
				if _, err := ws.ApplyPreset(preset); err != nil {
					return err
				}
			case raw != "":
				r, err := parseRaw(raw)
				if err != nil {
					return err
				}
				ws.SetAll(r)
			}
			if a.asJSON {
				return a.printJSON(ws.Weights())
			}
			p := ws.Percent()
			fmt.Fprintf(a.out, "visual %d%%  spatial %d%%  attr %d%%\n", p.Visual, p.Spatial, p.Attr)
			return nil
		},
	}
	cmd.Flags().StringVar(&raw, "raw", "", "slider values v,s,a in 0..100")
	cmd.Flags().StringVar(&preset, "preset", "", "preset name ("+presetNames()+")")
	cmd.Flags().BoolVar(&reset, "reset", false, "back to visual-only")
	cmd.MarkFlagsMutuallyExclusive("raw", "preset", "reset")
	return cmd
}

func parseRaw(s string) (weights.Raw, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return weights.Raw{}, fmt.Errorf("--raw wants three comma-separated values, got %q", s)
	}
	var vals [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 100 {
			return weights.Raw{}, fmt.Errorf("--raw value %q must be an integer in 0..100", p)
		}
		vals[i] = n
	}
	return weights.Raw{V: vals[0], S: vals[1], A: vals[2]}, nil
}

func presetNames() string {
	ps := weights.Presets()
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

// searchOptions are the per-search settings shared by every search subcommand.
type searchOptions struct {
	topK     int
	typology string
	climate  string
	massing  string
	strict   bool
	rerank   bool
	reTopK   int
	plan     bool
	phase    string
}

func (o *searchOptions) bind(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.IntVar(&o.topK, "top-k", search.DefaultTopK, "number of results")
	f.StringVar(&o.typology, "typology", "", "filter by typology")
	f.StringVar(&o.climate, "climate", "", "filter by climate bin")
	f.StringVar(&o.massing, "massing", "", "filter by massing type")
	f.BoolVar(&o.strict, "strict", false, "drop results that miss a filter instead of down-ranking them")
	f.BoolVar(&o.rerank, "rerank", true, "patch rerank the top candidates")
	f.IntVar(&o.reTopK, "re-topk", search.DefaultReTopK, "candidates to rerank")
	f.BoolVar(&o.plan, "plan", false, "floor plan mode")
	f.StringVar(&o.phase, "phase", "", "study phase for uploads (none, scored-upload, explore)")
}

// apply copies the flags given on this command line onto the session; the
// others keep their saved values.
func (o *searchOptions) apply(cmd *cobra.Command, s *navigator.Session) {
	f := cmd.Flags()
	if f.Changed("top-k") {
		s.SetTopK(o.topK)
	}
	if f.Changed("typology") || f.Changed("climate") || f.Changed("massing") || f.Changed("strict") {
		s.SetFilters(search.Filters{Typology: o.typology, ClimateBin: o.climate, MassingType: o.massing, Strict: o.strict})
	}
	if f.Changed("rerank") || f.Changed("re-topk") {
		s.SetRerank(search.Rerank{Enabled: o.rerank, ReTopK: o.reTopK})
	}
	if f.Changed("plan") {
		s.SetPlanMode(o.plan)
	}
	if f.Changed("phase") {
		s.SetPhase(search.ParsePhase(o.phase))
	}
}

func newSearchCmd(a *app) *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{Use: "search", Short: "Search by a reference image"}
	opts.bind(cmd)

	run := func(fn func(ctx context.Context, s *navigator.Session) (search.Response, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			opts.apply(cmd, s)
			resp, err := fn(cmd.Context(), s)
			if err != nil {
				return err
			}
			return a.printResults(resp)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "url <image-url>",
		Short: "Search by a public image URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, s *navigator.Session) (search.Response, error) {
				return s.SearchURL(ctx, args[0])
			})(cmd, args)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "image <image-id>",
		Short: "Search by an image already in the corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, s *navigator.Session) (search.Response, error) {
				return s.SearchImage(ctx, args[0])
			})(cmd, args)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "file <path>",
		Short: "Upload a JPG, PNG or PDF reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read reference: %w", err)
			}
			return run(func(ctx context.Context, s *navigator.Session) (search.Response, error) {
				return s.SearchFile(ctx, args[0], data)
			})(cmd, args)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Repeat the last search with the current settings",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, s *navigator.Session) (search.Response, error) {
			return s.Refresh(ctx)
		}),
	})
	return cmd
}

func (a *app) printResults(resp search.Response) error {
	if a.asJSON {
		return a.printJSON(resp)
	}
	fmt.Fprintf(a.out, "query %s  %d ms  weights %.2f/%.2f/%.2f\n",
		resp.QueryID, resp.LatencyMS, resp.Weights.Visual, resp.Weights.Spatial, resp.Weights.Attr)
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tIMAGE\tPROJECT\tDISTANCE\tTITLE")
	for _, it := range resp.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.4f\t%s\n", it.Rank, it.ImageID, it.ProjectID, it.Distance, it.Title)
	}
	return tw.Flush()
}

func newLensCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "lens", Short: "Restrict searches to a set of latent-map images"}

	cmd.AddCommand(&cobra.Command{
		Use:   "project <project-id>",
		Short: "Use every image of a project as the lens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			l, err := s.Lens().SelectProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "lens: %d images of %s\n", l.Len(), l.ProjectID())
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop the lens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			s.Lens().Clear()
			fmt.Fprintln(a.out, "lens cleared")
			return nil
		},
	})
	return cmd
}

func newVoteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "vote <image-id> <like|dislike|clear> [<image-id> <vote>...]",
		Short: "Send relevance feedback on the last results",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%2 != 0 {
				return fmt.Errorf("want pairs of <image-id> <vote>, got %d args", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			for i := 0; i < len(args); i += 2 {
				v, err := domfb.ParseVote(args[i+1])
				if err != nil {
					return err
				}
				if err := s.Vote(args[i], v); err != nil {
					return err
				}
			}
			s.Feedback().Flush()
			if a.asJSON {
				return a.printJSON(s.View())
			}
			w := s.Weights().Percent()
			fmt.Fprintf(a.out, "feedback sent; weights now visual %d%%  spatial %d%%  attr %d%%\n",
				w.Visual, w.Spatial, w.Attr)
			return nil
		},
	}
}

func newMapCmd(a *app) *cobra.Command {
	var (
		outPath string
		title   string
	)
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Export the latent map with the current lens as an HTML page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			l := s.Lens()
			if err := l.Load(cmd.Context()); err != nil {
				return err
			}
			cfg := echarts.DefaultMapConfig()
			if title != "" {
				cfg.Title = title
			}

			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create %s: %w", outPath, err)
			}
			defer f.Close()
			points := l.Points()
			err = echarts.RenderLatentMap(f, echarts.MapData{
				Points:      points,
				Highlighted: points.ProjectImageIDs(l.SelectedProject()),
				Lens:        l.Lens(),
			}, cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "wrote %s (%d points)\n", outPath, points.Len())
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "latent-map.html", "output file")
	cmd.Flags().StringVar(&title, "title", "", "chart title")
	return cmd
}
