package record

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	Workers int            // files read in parallel, default GOMAXPROCS
	Logger  zerolog.Logger // Logger
}

// Result is the outcome of loading one or more record files.
type Result struct {
	Games  []*Game
	Misses int // malformed records skipped
	Files  int
}

// Loader reads record files.
type Loader struct {
	cfg LoaderConfig
	log zerolog.Logger
}

// NewLoader creates a Loader.
func NewLoader(cfg LoaderConfig) *Loader {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &Loader{
		cfg: cfg,
		log: cfg.Logger.With().Str("component", "record").Logger(),
	}
}

// Load reads a single file with a default Loader.
func Load(ctx context.Context, path string) (*Result, error) {
	return NewLoader(LoaderConfig{}).Load(ctx, path)
}

// LoadDir reads every record file in dir with a default Loader.
func LoadDir(ctx context.Context, dir string) (*Result, error) {
	return NewLoader(LoaderConfig{}).LoadDir(ctx, dir)
}

// IsRecordFile reports whether name has a record extension: .txt, .ggf or
// .rec, optionally followed by .zst.
func IsRecordFile(name string) bool {
	name = strings.TrimSuffix(name, ".zst")
	switch filepath.Ext(name) {
	case ".txt", ".ggf", ".rec":
		return true
	}
	return false
}

func isGGF(path string) bool {
	return filepath.Ext(strings.TrimSuffix(path, ".zst")) == ".ggf"
}

// Load reads one file. Malformed records are counted in Misses; a missing or
// unreadable file is ErrCorpusIO.
func (l *Loader) Load(ctx context.Context, path string) (*Result, error) {
	games, misses, err := l.readFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Result{Games: games, Misses: misses, Files: 1}, nil
}

// Files returns the record files under dir, sorted by name.
func Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorpusIO, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsRecordFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// LoadDir reads every record file in dir, cfg.Workers at a time. Games keep
// file-name order so a seeded split is reproducible.
func (l *Loader) LoadDir(ctx context.Context, dir string) (*Result, error) {
	files, err := Files(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no record files in %s", ErrCorpusIO, dir)
	}
	return l.LoadFiles(ctx, files)
}

// LoadFiles reads the given files in parallel.
func (l *Loader) LoadFiles(ctx context.Context, files []string) (*Result, error) {
	start := time.Now()
	perFile := make([][]*Game, len(files))
	var mu sync.Mutex
	misses := 0

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Workers)
	for i, path := range files {
		g.Go(func() error {
			games, m, err := l.readFile(ctx, path)
			if err != nil {
				return err
			}
			perFile[i] = games
			mu.Lock()
			misses += m
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Misses: misses, Files: len(files)}
	for _, games := range perFile {
		res.Games = append(res.Games, games...)
	}
	l.log.Info().
		Int("files", len(files)).
		Int("games", len(res.Games)).
		Int("misses", res.Misses).
		Dur("elapsed", time.Since(start)).
		Msg("corpus loaded")
	return res, nil
}

func (l *Loader) readFile(ctx context.Context, path string) ([]*Game, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrCorpusIO, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %s: %v", ErrCorpusIO, path, err)
		}
		defer zr.Close()
		r = zr
	}

	var games []*Game
	var misses int
	if isGGF(path) {
		games, misses, err = l.readGGF(ctx, path, r)
	} else {
		games, misses, err = l.readLines(ctx, path, r)
	}
	if err != nil {
		return nil, 0, err
	}
	l.log.Debug().
		Str("file", filepath.Base(path)).
		Int("games", len(games)).
		Int("misses", misses).
		Msg("file loaded")
	return games, misses, nil
}

func (l *Loader) readLines(ctx context.Context, path string, r io.Reader) ([]*Game, int, error) {
	var games []*Game
	misses := 0
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lineNum := 0
	base := filepath.Base(path)
	for sc.Scan() {
		lineNum++
		if lineNum%10000 == 0 && ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		g, err := ParseLine(line)
		if err != nil {
			misses++
			l.log.Debug().Err(err).Str("file", base).Int("line", lineNum).Msg("skipping record")
			continue
		}
		g.Source = base + ":" + strconv.Itoa(lineNum)
		games = append(games, g)
	}
	if err := sc.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrCorpusIO, path, err)
	}
	return games, misses, nil
}

func (l *Loader) readGGF(ctx context.Context, path string, r io.Reader) ([]*Game, int, error) {
	var games []*Game
	misses := 0
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	sc.Split(ScanGGF)
	n := 0
	base := filepath.Base(path)
	for sc.Scan() {
		n++
		if n%10000 == 0 && ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		g, err := ParseGGF(sc.Text())
		if err != nil {
			misses++
			l.log.Debug().Err(err).Str("file", base).Int("game", n).Msg("skipping record")
			continue
		}
		g.Source = base + ":#" + strconv.Itoa(n)
		games = append(games, g)
	}
	if err := sc.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrCorpusIO, path, err)
	}
	return games, misses, nil
}

// Writer writes pipe-format records, zstd-compressed when the path ends in
// ".zst".
type Writer struct {
	f  *os.File
	zw *zstd.Encoder
	bw *bufio.Writer
	n  int
}

// Create opens path for writing records.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorpusIO, err)
	}
	w := &Writer{f: f}
	var out io.Writer = f
	if strings.HasSuffix(path, ".zst") {
		zw, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: %v", ErrCorpusIO, err)
		}
		w.zw = zw
		out = zw
	}
	w.bw = bufio.NewWriter(out)
	return w, nil
}

// Write appends one game.
func (w *Writer) Write(g *Game) error {
	if _, err := w.bw.WriteString(FormatLine(g)); err != nil {
		return err
	}
	w.n++
	return w.bw.WriteByte('\n')
}

// Count returns the number of games written.
func (w *Writer) Count() int {
	return w.n
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	err := w.bw.Flush()
	if w.zw != nil {
		if cerr := w.zw.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	return err
}
