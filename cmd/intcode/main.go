// intcode: Intcode program runner.
//
// Runs a single program, an amplifier chain, or a packet network. Programs
// are read from a text file or from the image catalog, and can be saved to
// the catalog for later runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fortiblox/intcode/internal/types"
	"github.com/fortiblox/intcode/pkg/cluster"
	"github.com/fortiblox/intcode/pkg/imagestore"
	"github.com/fortiblox/intcode/pkg/intcode"
	"github.com/fortiblox/intcode/pkg/loader"
)

// Version information
var (
	Version   = "0.1.0"
	GitCommit = "dev"
)

// Exit codes.
const (
	exitOK      = 0
	exitFault   = 1
	exitWaiting = 2
)

// Execution modes.
const (
	modeRun          = "run"
	modeAmplify      = "amplify"
	modeFeedback     = "feedback"
	modeNetwork      = "network"
	modeNetworkFirst = "network-first"
)

// Configuration flags
var (
	programPath = flag.String("program", "", "Program image file (.zst is decompressed)")
	inputList   = flag.String("input", "", "Comma-separated input values")
	asciiInput  = flag.String("ascii", "", "Text fed to the program as ASCII input (implies -ascii-out)")
	asciiOutput = flag.Bool("ascii-out", false, "Print output as ASCII text")
	mode        = flag.String("mode", modeRun, "Mode: run, amplify, feedback, network, network-first")
	phaseList   = flag.String("phases", "", "Comma-separated phase values (default 0,1,2,3,4 or 5,6,7,8,9)")
	storePath   = flag.String("store", "", "Image catalog path")
	backend     = flag.String("backend", imagestore.BackendBolt, "Image catalog backend: bolt, badger, memory")
	saveName    = flag.String("save", "", "Save the program to the catalog under this name")
	imageRef    = flag.String("image", "", "Load the program from the catalog by name or id")
	listImages  = flag.Bool("list", false, "List catalog images and exit")
	stepLimit   = flag.Uint64("step-limit", 0, "Max instructions per machine (0 = unlimited)")
	nodes       = flag.Int("nodes", cluster.DefaultNetworkSize, "Number of network nodes")
	trace       = flag.Bool("trace", false, "Log every instruction")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// config holds the parsed command line.
type config struct {
	Program   string
	Input     string
	ASCII     string
	ASCIIOut  bool
	Mode      string
	Phases    string
	Store     string
	Backend   string
	Save      string
	Image     string
	List      bool
	StepLimit uint64
	Nodes     int
	Trace     bool
}

// flagConfig returns the configuration given on the command line.
func flagConfig() config {
	return config{
		Program:   *programPath,
		Input:     *inputList,
		ASCII:     *asciiInput,
		ASCIIOut:  *asciiOutput,
		Mode:      *mode,
		Phases:    *phaseList,
		Store:     *storePath,
		Backend:   *backend,
		Save:      *saveName,
		Image:     *imageRef,
		List:      *listImages,
		StepLimit: *stepLimit,
		Nodes:     *nodes,
		Trace:     *trace,
	}
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("intcode %s (%s)\n", Version, GitCommit)
		os.Exit(exitOK)
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, stopping...", sig)
		cancel()
	}()

	code := run(ctx, flagConfig(), os.Stdout)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, cfg config, stdout io.Writer) int {
	var store imagestore.Store
	if cfg.Store != "" || cfg.Backend == imagestore.BackendMemory {
		s, err := imagestore.OpenStore(cfg.Backend, cfg.Store)
		if err != nil {
			log.Printf("Failed to open image catalog: %v", err)
			return exitFault
		}
		defer s.Close()
		store = s
	}

	if cfg.List {
		if store == nil {
			log.Println("-list requires -store")
			return exitFault
		}
		if err := printCatalog(stdout, store); err != nil {
			log.Printf("Failed to list images: %v", err)
			return exitFault
		}
		return exitOK
	}

	image, err := loadProgram(cfg, store)
	if err != nil {
		log.Printf("Failed to load program: %v", err)
		return exitFault
	}

	if cfg.Save != "" {
		if store == nil {
			log.Println("-save requires -store")
			return exitFault
		}
		rec, err := store.Put(cfg.Save, image)
		if err != nil {
			log.Printf("Failed to save program: %v", err)
			return exitFault
		}
		log.Printf("Saved %q as %s (%d words)", rec.Name, rec.ID, len(rec.Words))
	}

	var opts []intcode.Option
	if cfg.StepLimit > 0 {
		opts = append(opts, intcode.WithStepLimit(cfg.StepLimit))
	}
	if cfg.Trace {
		opts = append(opts, intcode.WithTracer(log.New(os.Stderr, "trace ", log.Lmicroseconds)))
	}

	switch cfg.Mode {
	case modeRun:
		return runSingle(cfg, stdout, image, opts)
	case modeAmplify, modeFeedback:
		return runPipeline(ctx, cfg, stdout, image, opts)
	case modeNetwork, modeNetworkFirst:
		return runNetwork(ctx, cfg, stdout, image, opts)
	default:
		log.Printf("Unknown mode %q", cfg.Mode)
		return exitFault
	}
}

// loadProgram reads the program from -program or from the catalog.
func loadProgram(cfg config, store imagestore.Store) ([]intcode.Word, error) {
	switch {
	case cfg.Program != "":
		return loader.LoadFile(cfg.Program)
	case cfg.Image != "":
		if store == nil {
			return nil, errors.New("-image requires -store")
		}
		rec, err := lookupImage(store, cfg.Image)
		if err != nil {
			return nil, err
		}
		return rec.Words, nil
	default:
		return nil, errors.New("no program given (use -program or -image)")
	}
}

// lookupImage resolves ref as a catalog name, falling back to a base58 id.
func lookupImage(store imagestore.Store, ref string) (*imagestore.Record, error) {
	rec, err := store.Lookup(ref)
	if err == nil || !errors.Is(err, imagestore.ErrNotFound) {
		return rec, err
	}
	id, idErr := types.ImageIDFromBase58(ref)
	if idErr != nil {
		return nil, fmt.Errorf("%w: %s", imagestore.ErrNotFound, ref)
	}
	return store.Get(id)
}

func printCatalog(w io.Writer, store imagestore.Store) error {
	recs, err := store.List()
	if err != nil {
		return err
	}
	for _, rec := range recs {
		fmt.Fprintf(w, "%s\t%s\t%d words\n", rec.ID, rec.Name, len(rec.Words))
	}
	return nil
}

func runSingle(cfg config, w io.Writer, image []intcode.Word, opts []intcode.Option) int {
	inputs, err := parseWords(cfg.Input)
	if err != nil {
		log.Printf("Invalid -input: %v", err)
		return exitFault
	}

	m := intcode.New(image, append(opts, intcode.WithInput(inputs...))...)
	if cfg.ASCII != "" {
		m.PushString(strings.ReplaceAll(cfg.ASCII, `\n`, "\n"))
	}

	err = m.Execute()
	printOutput(w, m.Output().Drain(), cfg.ASCIIOut || cfg.ASCII != "")

	if err != nil {
		log.Printf("Program stopped: %v", err)
		return exitFault
	}
	if m.State() == intcode.Waiting {
		log.Printf("Program is waiting for input after %d steps", m.Steps())
		return exitWaiting
	}
	log.Printf("Program halted after %d steps", m.Steps())
	return exitOK
}

func runPipeline(ctx context.Context, cfg config, w io.Writer, image []intcode.Word, opts []intcode.Option) int {
	feedback := cfg.Mode == modeFeedback

	phases, err := parseWords(cfg.Phases)
	if err != nil {
		log.Printf("Invalid -phases: %v", err)
		return exitFault
	}

	// Explicit phases run once in the given order; otherwise every ordering
	// of the default set is searched.
	if len(phases) > 0 {
		p, err := cluster.NewPipeline(image, phases, opts...)
		if err != nil {
			log.Printf("Failed to build pipeline: %v", err)
			return exitFault
		}
		out, err := p.Run(ctx, 0, feedback)
		if err != nil {
			log.Printf("Pipeline failed: %v", err)
			return exitFault
		}
		fmt.Fprintln(w, out)
		return exitOK
	}

	phases = []intcode.Word{0, 1, 2, 3, 4}
	if feedback {
		phases = []intcode.Word{5, 6, 7, 8, 9}
	}
	best, perm, err := cluster.MaxSignal(ctx, image, phases, feedback, opts...)
	if err != nil {
		log.Printf("Pipeline search failed: %v", err)
		return exitFault
	}
	log.Printf("Best phase order %v", perm)
	fmt.Fprintln(w, best)
	return exitOK
}

func runNetwork(ctx context.Context, cfg config, w io.Writer, image []intcode.Word, opts []intcode.Option) int {
	netCfg := cluster.DefaultNetworkConfig()
	netCfg.Size = cfg.Nodes
	netCfg.StopOnFirstNAT = cfg.Mode == modeNetworkFirst
	netCfg.Logger = log.Default()

	net, err := cluster.NewNetwork(image, netCfg, opts...)
	if err != nil {
		log.Printf("Failed to build network: %v", err)
		return exitFault
	}
	y, err := net.Run(ctx)
	stats := net.Stats()
	log.Printf("Network ran %d rounds, %d packets, %d NAT deliveries",
		stats.Rounds, stats.Packets, stats.NATDeliveries)
	if err != nil {
		log.Printf("Network failed: %v", err)
		return exitFault
	}
	fmt.Fprintln(w, y)
	return exitOK
}

// parseWords parses a comma-separated list. An empty string is no values.
func parseWords(s string) ([]intcode.Word, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return loader.ParseString(s)
}

// printOutput writes values one per line, or as text when ascii is set. In
// text mode a trailing non-ASCII value is printed as a number.
func printOutput(w io.Writer, values []intcode.Word, ascii bool) {
	if !ascii {
		for _, v := range values {
			fmt.Fprintln(w, v)
		}
		return
	}
	text, rest := intcode.DecodeASCII(values)
	fmt.Fprint(w, text)
	if len(rest) > 0 && !strings.HasSuffix(text, "\n") && text != "" {
		fmt.Fprintln(w)
	}
	for _, v := range rest {
		fmt.Fprintln(w, v)
	}
}
