package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/spearcam/internal/config"
	"github.com/smazurov/spearcam/internal/logging"
	"github.com/smazurov/spearcam/internal/memalloc"
	"github.com/spf13/cobra"
)

const mib = 1 << 20

// CreateMemallocCmd creates the memalloc command with its profiles and
// table subcommands.
func CreateMemallocCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memalloc",
		Short: "Inspect contiguous memory allocation profiles",
	}
	cmd.AddCommand(createProfilesCmd(), createTableCmd())
	return cmd
}

func createProfilesCmd() *cobra.Command {
	var windowMB uint64

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List the built-in allocation profiles",
		Long:  `Lists every built-in profile with its chunk count and total size, and flags the ones that do not fit the memory window.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeProfiles(cmd.OutOrStdout(), windowMB*mib)
		},
	}
	cmd.Flags().Uint64Var(&windowMB, "window-mb", memalloc.DefaultWindow/mib, "Memory window in MiB")
	return cmd
}

func writeProfiles(out io.Writer, window uint64) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCHUNKS\tTOTAL MiB\tFITS")
	for _, p := range memalloc.Profiles() {
		fits := "yes"
		if p.TotalBytes() > window {
			fits = "NO"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%.2f\t%s\n",
			p.ID, p.Name, p.Len(), float64(p.TotalBytes())/mib, fits)
	}
	return tw.Flush()
}

type tableChunk struct {
	Index      int    `toml:"index"`
	BusAddress string `toml:"bus_address"`
	Pages      uint32 `toml:"pages"`
	Size       uint32 `toml:"size"`
}

type tableDoc struct {
	Profile    string       `toml:"profile"`
	Base       string       `toml:"base"`
	TotalBytes uint64       `toml:"total_bytes"`
	OverWindow bool         `toml:"over_window"`
	Chunks     []tableChunk `toml:"chunks"`
}

func createTableCmd() *cobra.Command {
	var profile string
	var base string
	var asTOML bool

	cmd := &cobra.Command{
		Use:   "table",
		Short: "Print the chunk table a profile lays out from a base address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			doc, err := buildTable(profile, base)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asTOML {
				enc := toml.NewEncoder(out)
				return enc.Encode(doc)
			}
			return writeTable(out, doc)
		},
	}
	cmd.Flags().StringVar(&profile, "profile", memalloc.DefaultProfile, "Profile name")
	cmd.Flags().StringVar(&base, "base", fmt.Sprintf("0x%08x", memalloc.DefaultBase), "Region base bus address")
	cmd.Flags().BoolVar(&asTOML, "toml", false, "Emit the table as TOML")
	return cmd
}

func buildTable(profileName, base string) (tableDoc, error) {
	p, err := memalloc.ProfileByName(profileName)
	if err != nil {
		return tableDoc{}, err
	}
	addr, err := config.ParseAddress(base)
	if err != nil {
		return tableDoc{}, err
	}
	alloc, err := memalloc.New(memalloc.Config{Profile: p, Base: addr})
	if err != nil {
		return tableDoc{}, err
	}

	stats := alloc.Stats()
	doc := tableDoc{
		Profile:    p.Name,
		Base:       fmt.Sprintf("0x%08x", addr),
		TotalBytes: stats.TotalBytes,
		OverWindow: stats.OverWindow,
	}
	for _, c := range alloc.Chunks() {
		doc.Chunks = append(doc.Chunks, tableChunk{
			Index:      c.Index,
			BusAddress: fmt.Sprintf("0x%08x", c.BusAddress),
			Pages:      c.Size / memalloc.PageSize,
			Size:       c.Size,
		})
	}
	return doc, nil
}

func writeTable(out io.Writer, doc tableDoc) error {
	fmt.Fprintf(out, "profile %s at %s, %d chunks, %.2f MiB\n",
		doc.Profile, doc.Base, len(doc.Chunks), float64(doc.TotalBytes)/mib)
	if doc.OverWindow {
		fmt.Fprintln(out, "warning: table exceeds the memory window")
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "INDEX\tBUS ADDRESS\tPAGES\tBYTES\t")
	for _, c := range doc.Chunks {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t\n", c.Index, c.BusAddress, c.Pages, c.Size)
	}
	return tw.Flush()
}
