// Package ax25cfg loads ax25link session and kissnet channel settings
// from a YAML file plus command-line flag overrides, grounded in the
// teacher's two configuration-loading idioms: deviceid.go's YAML file
// search list (there used for tocalls.yaml) and kissutil.go's pflag-based
// command-line options for connecting to a KISS TNC.
package ax25cfg

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/w1fq/ax25link/ax25"
	"github.com/w1fq/ax25link/ax25link"
)

// File is the on-disk shape of an ax25link config file, in the units a
// human writes (seconds, callsign strings) rather than the Go types
// ax25link.Config and the station addresses ultimately need.
type File struct {
	Local string `yaml:"local"`
	Peer  string `yaml:"peer"`
	TNC   string `yaml:"tnc"` // host:port for kissnet.Dial

	Modulo128    bool    `yaml:"modulo128"`
	MaxFrames    int     `yaml:"max_frames"`
	Retries      int     `yaml:"retries"`
	PacketLength int     `yaml:"packet_length"`
	UseSREJ      bool    `yaml:"use_srej"`
	SendFRMR     bool    `yaml:"send_frmr"`
	NegotiateXID bool    `yaml:"negotiate_xid"`
	PacketTime   float64 `yaml:"packet_time_seconds"`
	T1           float64 `yaml:"t1_seconds"`
	T2           float64 `yaml:"t2_seconds"`
	T3           float64 `yaml:"t3_seconds"`
}

// searchPaths mirrors deviceid.go's tocalls.yaml lookup list: try the
// current directory, then a couple of conventional install locations,
// before giving up.
func searchPaths(name string) []string {
	return []string{
		name,
		"data/" + name,
		"/usr/local/share/ax25link/" + name,
		"/usr/share/ax25link/" + name,
	}
}

// Load reads the named config file, trying searchPaths(name) in order if
// name itself doesn't exist, and returns the parsed File plus the path it
// was actually read from.
func Load(name string) (File, string, error) {
	var lastErr error
	for _, p := range searchPaths(name) {
		data, err := os.ReadFile(p)
		if err != nil {
			lastErr = err
			continue
		}
		var f File
		if err := yaml.Unmarshal(data, &f); err != nil {
			return File{}, "", fmt.Errorf("ax25cfg: parse %s: %w", p, err)
		}
		return f, p, nil
	}
	return File{}, "", fmt.Errorf("ax25cfg: %s not found in any search path: %w", name, lastErr)
}

// Flags binds the same overrides kissutil.go's command line exposes
// (host/port, verbosity) plus the ax25link-specific knobs, onto fs. Call
// Parse before Resolve.
type Flags struct {
	Local        *string
	Peer         *string
	TNC          *string
	Modulo128    *bool
	MaxFrames    *int
	Retries      *int
	PacketLength *int
	Verbose      *bool
}

// RegisterFlags installs the standard set of ax25link flags on fs,
// following kissutil.go's StringP/BoolP/IntP style (short + long forms,
// inline defaults and help text).
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	return &Flags{
		Local:        fs.StringP("local", "l", "", "Local station callsign-SSID, e.g. W1FQ-1"),
		Peer:         fs.StringP("peer", "r", "", "Peer station callsign-SSID"),
		TNC:          fs.StringP("tnc", "t", "", "KISS TNC host:port (empty = use config file/localhost:8001)"),
		Modulo128:    fs.Bool("modulo128", false, "Use extended (modulo-128) sequencing"),
		MaxFrames:    fs.IntP("max-frames", "w", 0, "Window size (0 = use config file/default)"),
		Retries:      fs.IntP("retries", "n", 0, "T1/T3 retry budget (0 = use config file/default)"),
		PacketLength: fs.IntP("packet-length", "L", 0, "Max I-frame information bytes (0 = use config file/default)"),
		Verbose:      fs.BoolP("verbose", "v", false, "Verbose protocol tracing"),
	}
}

// Resolved is everything a cmd/ax25link invocation needs to bring up one
// session: the ax25link.Config, the two station addresses, and the TNC
// dial address.
type Resolved struct {
	Config  ax25link.Config
	Local   ax25.Address
	Peer    ax25.Address
	TNC     string
	Verbose bool
}

// Resolve merges file (may be the zero value if no config file was
// given) with flag overrides, following the same precedence kissutil.go
// uses for its own options: explicit flags win, otherwise the file,
// otherwise ax25link.DefaultConfig().
func Resolve(file File, flags *Flags) (Resolved, error) {
	cfg := ax25link.DefaultConfig()

	if file.MaxFrames > 0 {
		cfg.MaxFrames = file.MaxFrames
	}
	if file.Retries > 0 {
		cfg.Retries = file.Retries
	}
	if file.PacketLength > 0 {
		cfg.PacketLength = file.PacketLength
	}
	cfg.Modulo128 = file.Modulo128
	cfg.UseSREJ = file.UseSREJ
	cfg.SendFRMR = file.SendFRMR
	cfg.NegotiateXID = file.NegotiateXID
	if file.PacketTime > 0 {
		cfg.PacketTime = secondsToDuration(file.PacketTime)
	}
	if file.T1 > 0 {
		cfg.T1 = secondsToDuration(file.T1)
	}
	if file.T2 > 0 {
		cfg.T2 = secondsToDuration(file.T2)
	}
	if file.T3 > 0 {
		cfg.T3 = secondsToDuration(file.T3)
	}

	localStr, peerStr, tnc := file.Local, file.Peer, file.TNC
	if flags != nil {
		if *flags.Local != "" {
			localStr = *flags.Local
		}
		if *flags.Peer != "" {
			peerStr = *flags.Peer
		}
		if *flags.TNC != "" {
			tnc = *flags.TNC
		}
		if *flags.Modulo128 {
			cfg.Modulo128 = true
		}
		if *flags.MaxFrames > 0 {
			cfg.MaxFrames = *flags.MaxFrames
		}
		if *flags.Retries > 0 {
			cfg.Retries = *flags.Retries
		}
		if *flags.PacketLength > 0 {
			cfg.PacketLength = *flags.PacketLength
		}
	}

	local, err := ax25.ParseAddress(localStr)
	if err != nil {
		return Resolved{}, fmt.Errorf("ax25cfg: local station: %w", err)
	}
	peer, err := ax25.ParseAddress(peerStr)
	if err != nil {
		return Resolved{}, fmt.Errorf("ax25cfg: peer station: %w", err)
	}
	if tnc == "" {
		tnc = "localhost:8001"
	}

	verbose := flags != nil && *flags.Verbose
	return Resolved{Config: cfg, Local: local, Peer: peer, TNC: tnc, Verbose: verbose}, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
