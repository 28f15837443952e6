// Command allknn computes exact k-nearest-neighbors between point sets.
//
// It loads a reference set (and optionally a separate query set), finds
// the k nearest reference points of every query point, and writes two
// k x M output grids: neighbor indices and the matching Euclidean
// distances.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/klauspost/compress/gzip"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/allknn"
	"github.com/hupe1980/allknn/blobstore"
	blobminio "github.com/hupe1980/allknn/blobstore/minio"
	"github.com/hupe1980/allknn/kdtree"
	"github.com/hupe1980/allknn/matrix"
)

type config struct {
	referenceFile string
	distancesFile string
	neighborsFile string
	k             int
	queryFile     string
	leafSize      int
	naive         bool
	singleMode    bool
	snapshotFile  string
	endpoint      string
	bucket        string
	verbose       bool
}

func main() {
	flag.Usage = func() {
		s := "---------------------------------------------------\n"
		s += "allknn\n"
		s += "Exact k-nearest-neighbor search with kd-trees.\n"
		s += "\n"
		s += "Finds the k nearest reference points of every query\n"
		s += "point (queries default to the reference set itself)\n"
		s += "and writes k x M index and distance grids.\n"
		s += "\n"
		s += "Args:\n"
		fmt.Fprint(os.Stderr, s)
		flag.PrintDefaults()
	}

	var cfg config
	flag.StringVar(&cfg.referenceFile, "reference_file", "",
		"File containing the reference dataset (required)",
	)
	flag.StringVar(&cfg.distancesFile, "distances_file", "",
		"File to output distances into (required)",
	)
	flag.StringVar(&cfg.neighborsFile, "neighbors_file", "",
		"File to output neighbors into (required)",
	)
	flag.IntVar(&cfg.k, "k", 0,
		"Number of nearest neighbors to find (required)",
	)
	flag.StringVar(&cfg.queryFile, "query_file", "",
		"File containing query points (optional)",
	)
	flag.IntVar(&cfg.leafSize, "leaf_size", 20,
		"Leaf size for tree building",
	)
	flag.BoolVar(&cfg.naive, "naive", false,
		"If true, compute by brute force",
	)
	flag.BoolVar(&cfg.singleMode, "single_mode", false,
		"If true, use single-tree search instead of dual-tree",
	)
	flag.StringVar(&cfg.snapshotFile, "snapshot_file", "",
		"Reference tree snapshot to reuse, created when missing (optional)",
	)
	flag.StringVar(&cfg.endpoint, "storage_endpoint", "",
		"S3-compatible endpoint; file arguments become object keys (optional)",
	)
	flag.StringVar(&cfg.bucket, "storage_bucket", "",
		"Bucket for remote files (required with -storage_endpoint)",
	)
	flag.BoolVar(&cfg.verbose, "verbose", false,
		"Enable debug logging",
	)
	flag.Parse()

	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	logger := allknn.NewTextLogger(level)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	if err := run(ctx, &cfg, logger); err != nil {
		if errors.Is(err, errMissingFlag) {
			flag.Usage()
		}
		logger.Error("allknn failed", "error", err)
		os.Exit(1)
	}
}

var errMissingFlag = errors.New("missing required flag")

func run(ctx context.Context, cfg *config, logger *allknn.Logger) error {
	if cfg.referenceFile == "" || cfg.distancesFile == "" || cfg.neighborsFile == "" || cfg.k == 0 {
		return fmt.Errorf("%w: -reference_file, -distances_file, -neighbors_file and -k must all be set", errMissingFlag)
	}
	if cfg.leafSize < 0 {
		return fmt.Errorf("invalid leaf size: %d, must not be negative", cfg.leafSize)
	}
	if cfg.leafSize == 0 {
		logger.Warn("leaf size 0 promoted to 1, the smallest effective leaf")
		cfg.leafSize = 1
	}
	if cfg.naive && cfg.singleMode {
		logger.Warn("-single_mode ignored because -naive is true; naive mode overrides single mode")
		cfg.singleMode = false
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	ref, err := loadMatrix(ctx, store, cfg.referenceFile, logger)
	if err != nil {
		return fmt.Errorf("load reference set: %w", err)
	}
	defer ref.Close()

	var queries *matrix.Dense
	if cfg.queryFile != "" {
		queries, err = loadMatrix(ctx, store, cfg.queryFile, logger)
		if err != nil {
			return fmt.Errorf("load query set: %w", err)
		}
		defer queries.Close()
	}

	if cfg.k <= 0 || cfg.k >= ref.Rows() {
		return fmt.Errorf("invalid k: %d, must be greater than 0 and smaller than the number of reference points (%d)", cfg.k, ref.Rows())
	}

	mode := allknn.ModeDualTree
	switch {
	case cfg.naive:
		mode = allknn.ModeNaive
		// A tree over everything in one leaf is equivalent anyway; the
		// explicit engine just skips the build.
		cfg.leafSize = ref.Rows()
		if queries != nil && queries.Rows() > cfg.leafSize {
			cfg.leafSize = queries.Rows()
		}
	case cfg.singleMode:
		mode = allknn.ModeSingleTree
	}

	logger.Info("searching",
		"mode", mode.String(),
		"k", cfg.k,
		"leaf_size", cfg.leafSize,
		"reference_points", ref.Rows(),
		"dimensions", ref.Cols(),
	)

	opts := []allknn.Option{
		allknn.WithMode(mode),
		allknn.WithLeafSize(cfg.leafSize),
		allknn.WithLogger(logger),
	}

	searcher, err := openSearcher(ctx, cfg, ref, opts, logger)
	if err != nil {
		return err
	}

	var res *allknn.Result
	if queries != nil {
		res, err = searcher.SearchWith(ctx, queries, cfg.k)
	} else {
		res, err = searcher.Search(ctx, cfg.k)
	}
	if err != nil {
		return err
	}

	return saveResult(ctx, store, cfg, res)
}

// openStore builds the remote blob store when -storage_endpoint is set.
// Credentials come from MINIO_ACCESS_KEY / MINIO_SECRET_KEY; an
// "http://" prefix on the endpoint disables TLS.
func openStore(cfg *config) (blobstore.Store, error) {
	if cfg.endpoint == "" {
		return nil, nil
	}
	if cfg.bucket == "" {
		return nil, fmt.Errorf("-storage_bucket is required with -storage_endpoint")
	}

	endpoint := cfg.endpoint
	secure := !strings.HasPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := miniogo.New(endpoint, &miniogo.Options{
		Creds: credentials.NewStaticV4(
			os.Getenv("MINIO_ACCESS_KEY"),
			os.Getenv("MINIO_SECRET_KEY"),
			"",
		),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("storage endpoint %s: %w", cfg.endpoint, err)
	}
	return blobminio.NewStore(client, cfg.bucket, ""), nil
}

// openSearcher builds the searcher, reusing a tree snapshot when one is
// configured and present. A fresh build writes the snapshot back.
func openSearcher(ctx context.Context, cfg *config, ref *matrix.Dense, opts []allknn.Option, logger *allknn.Logger) (*allknn.Searcher, error) {
	if cfg.snapshotFile == "" || cfg.naive {
		if cfg.snapshotFile != "" {
			logger.Warn("-snapshot_file ignored in naive mode; no tree is built")
		}
		return allknn.New(ref, opts...)
	}

	if _, err := os.Stat(cfg.snapshotFile); err == nil {
		tree, err := kdtree.LoadFromFile(cfg.snapshotFile, ref)
		if err != nil {
			return nil, fmt.Errorf("load snapshot %s: %w", cfg.snapshotFile, err)
		}
		logger.Debug("reference tree loaded from snapshot",
			"filename", cfg.snapshotFile,
			"nodes", tree.NumNodes(),
			"leaf_size", tree.LeafSize(),
		)
		return allknn.NewFromTree(tree, opts...)
	}

	searcher, err := allknn.New(ref, opts...)
	if err != nil {
		return nil, err
	}
	err = searcher.Tree().SaveToFile(cfg.snapshotFile)
	logger.LogSnapshot(ctx, cfg.snapshotFile, err)
	if err != nil {
		return nil, err
	}
	return searcher, nil
}

// loadMatrix reads a point set locally or through the blob store. The
// extension picks the format: .bin binary, .gz gzipped CSV, CSV
// otherwise.
func loadMatrix(ctx context.Context, store blobstore.Store, name string, logger *allknn.Logger) (*matrix.Dense, error) {
	if store == nil {
		x, err := matrix.Load(name)
		logger.LogMatrixLoad(ctx, name, rowsOf(x), colsOf(x), err)
		return x, err
	}

	blob, err := store.Open(ctx, name)
	if err != nil {
		logger.LogMatrixLoad(ctx, name, 0, 0, err)
		return nil, err
	}
	defer blob.Close()

	data, err := blobstore.ReadAll(ctx, blob)
	if err != nil {
		logger.LogMatrixLoad(ctx, name, 0, 0, err)
		return nil, err
	}

	x, err := decodeMatrix(name, data)
	logger.LogMatrixLoad(ctx, name, rowsOf(x), colsOf(x), err)
	return x, err
}

func decodeMatrix(name string, data []byte) (*matrix.Dense, error) {
	switch {
	case strings.HasSuffix(name, ".bin"):
		return matrix.ReadBinary(bytes.NewReader(data))
	case strings.HasSuffix(name, ".gz"):
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		defer zr.Close()
		return matrix.ReadCSV(zr)
	default:
		return matrix.ReadCSV(bytes.NewReader(data))
	}
}

func rowsOf(x *matrix.Dense) int {
	if x == nil {
		return 0
	}
	return x.Rows()
}

func colsOf(x *matrix.Dense) int {
	if x == nil {
		return 0
	}
	return x.Cols()
}

// saveResult persists the result grids. One shared .db/.sqlite path for
// both outputs selects the SQLite sink; otherwise two CSV (optionally
// gzipped) files, locally or uploaded through the blob store.
func saveResult(ctx context.Context, store blobstore.Store, cfg *config, res *allknn.Result) error {
	if cfg.distancesFile == cfg.neighborsFile && isSQLitePath(cfg.distancesFile) {
		if store == nil {
			return res.SaveSQLite(ctx, cfg.distancesFile)
		}
		return uploadSQLite(ctx, store, cfg.distancesFile, res)
	}

	if store == nil {
		return res.SaveCSV(cfg.distancesFile, cfg.neighborsFile)
	}

	var buf bytes.Buffer
	if err := encodeCSV(&buf, cfg.distancesFile, func(w *bytes.Buffer) error {
		return matrix.WriteCSV(w, res.Distances)
	}); err != nil {
		return err
	}
	if err := store.Put(ctx, cfg.distancesFile, buf.Bytes()); err != nil {
		return fmt.Errorf("upload %s: %w", cfg.distancesFile, err)
	}

	buf.Reset()
	if err := encodeCSV(&buf, cfg.neighborsFile, func(w *bytes.Buffer) error {
		return matrix.WriteIntsCSV(w, res.Neighbors)
	}); err != nil {
		return err
	}
	if err := store.Put(ctx, cfg.neighborsFile, buf.Bytes()); err != nil {
		return fmt.Errorf("upload %s: %w", cfg.neighborsFile, err)
	}
	return nil
}

func encodeCSV(buf *bytes.Buffer, name string, write func(*bytes.Buffer) error) error {
	if !strings.HasSuffix(name, ".gz") {
		return write(buf)
	}

	var plain bytes.Buffer
	if err := write(&plain); err != nil {
		return err
	}
	zw := gzip.NewWriter(buf)
	if _, err := zw.Write(plain.Bytes()); err != nil {
		return err
	}
	return zw.Close()
}

func isSQLitePath(name string) bool {
	return strings.HasSuffix(name, ".db") || strings.HasSuffix(name, ".sqlite")
}

// uploadSQLite writes the SQLite sink to a temp file and uploads it.
func uploadSQLite(ctx context.Context, store blobstore.Store, name string, res *allknn.Result) error {
	tmp, err := os.CreateTemp("", "allknn-*.db")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpName)

	if err := res.SaveSQLite(ctx, tmpName); err != nil {
		return err
	}
	data, err := os.ReadFile(tmpName)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, name, data); err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	return nil
}
