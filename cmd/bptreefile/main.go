// Command bptreefile is an interactive driver over a single B+ tree
// index file, grounded on the host engine's cmd/repl (flag-configured
// bufio.Scanner REPL) but commanding the tree directly instead of
// going through a SQL engine.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"bptreefile/internal/config"
	"bptreefile/internal/storage/btree"
	"bptreefile/internal/storage/buffer"
	"bptreefile/internal/storage/disk"
	"bptreefile/internal/storage/page"
)

var (
	flagFile       = flag.String("file", "tree.db", "backing data file for the tree")
	flagCatalog    = flag.String("catalog", "tree.catalog", "directory file mapping tree names to header pages")
	flagConfigPath = flag.String("config", "", "optional YAML config file (page_size, buffer_frames, checkpoint_interval)")
	flagPageSize   = flag.Int("pagesize", 0, "override the configured page size")
	flagName       = flag.String("name", "default", "tree name within the catalog")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*flagConfigPath)
	if err != nil {
		log.Fatalf("bptreefile: %v", err)
	}
	if *flagPageSize > 0 {
		cfg.PageSize = *flagPageSize
	}

	pool, err := buffer.NewManager(*flagFile, cfg.PageSize, cfg.BufferFrames, nil)
	if err != nil {
		log.Fatalf("bptreefile: open buffer pool: %v", err)
	}
	defer pool.Close()
	if cfg.CheckpointInterval > 0 {
		spec := fmt.Sprintf("@every %s", cfg.CheckpointInterval)
		if err := pool.StartCheckpointSchedule(spec); err != nil {
			log.Fatalf("bptreefile: start checkpoint schedule: %v", err)
		}
	}

	dir, err := disk.Open(*flagCatalog)
	if err != nil {
		log.Fatalf("bptreefile: open catalog: %v", err)
	}

	tree, err := openOrCreate(*flagName, pool, dir, cfg.PageSize)
	if err != nil {
		log.Fatalf("bptreefile: %v", err)
	}
	defer tree.Close()

	runREPL(tree)
}

func openOrCreate(name string, pool buffer.Pool, dir *disk.Directory, pageSize int) (*btree.Tree, error) {
	tree, err := btree.Open(name, pool, dir, pageSize, nil)
	if err == nil {
		return tree, nil
	}
	if btree.IsKind(err, btree.KindNotFound) {
		return btree.Create(name, pool, dir, pageSize, nil)
	}
	return nil, err
}

// runREPL implements the §6 command set: insert/scan/delete/
// deletescan operate over a [lo, hi] range with -1 meaning unbounded;
// print and stats dump the tree's shape; quit exits.
func runREPL(tree *btree.Tree) {
	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 1024), 1024*1024)

	printer := message.NewPrinter(language.English)
	interactive := false
	if fi, err := os.Stdin.Stat(); err == nil {
		interactive = (fi.Mode() & os.ModeCharDevice) != 0
	}

	for {
		if interactive {
			fmt.Print("bptreefile> ")
		}
		if !sc.Scan() {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := strings.ToLower(fields[0])

		switch cmd {
		case "quit", "exit":
			return
		case "print":
			if err := tree.Print(os.Stdout); err != nil {
				fmt.Fprintln(os.Stderr, "ERR:", err)
			}
		case "stats":
			runStats(tree, printer)
		case "insert":
			runInsert(tree, fields)
		case "scan":
			runScan(tree, fields)
		case "delete":
			runDelete(tree, fields)
		case "deletescan":
			runDeleteScan(tree, fields)
		default:
			fmt.Fprintf(os.Stderr, "ERR: unknown command %q\n", cmd)
		}
	}
}

func parseBound(s string) (*int32, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return nil, nil
	}
	v := int32(n)
	return &v, nil
}

func parseRange(fields []string) (lo, hi *int32, err error) {
	if len(fields) != 3 {
		return nil, nil, fmt.Errorf("want 2 arguments: lo hi")
	}
	if lo, err = parseBound(fields[1]); err != nil {
		return nil, nil, err
	}
	if hi, err = parseBound(fields[2]); err != nil {
		return nil, nil, err
	}
	return lo, hi, nil
}

func runInsert(tree *btree.Tree, fields []string) {
	lo, hi, err := parseRange(fields)
	if err != nil || lo == nil || hi == nil {
		fmt.Fprintln(os.Stderr, "ERR: insert requires bounded lo hi")
		return
	}
	for k := *lo; k <= *hi; k++ {
		rid := page.RecordID{PageNo: k - *lo, SlotNo: k - *lo + 1}
		if err := tree.Insert(k, rid); err != nil {
			fmt.Fprintf(os.Stderr, "ERR: insert %d: %v\n", k, err)
			return
		}
	}
}

func runScan(tree *btree.Tree, fields []string) {
	lo, hi, err := parseRange(fields)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERR:", err)
		return
	}
	scan, err := tree.OpenScan(lo, hi)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERR:", err)
		return
	}
	for {
		k, rid, err := scan.GetNext()
		if err == btree.ErrDone {
			return
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "ERR:", err)
			return
		}
		fmt.Printf("%d -> (%d, %d)\n", k, rid.PageNo, rid.SlotNo)
	}
}

func runDelete(tree *btree.Tree, fields []string) {
	lo, hi, err := parseRange(fields)
	if err != nil || lo == nil || hi == nil {
		fmt.Fprintln(os.Stderr, "ERR: delete requires bounded lo hi")
		return
	}
	for k := *lo; k <= *hi; k++ {
		rid := page.RecordID{PageNo: k - *lo, SlotNo: k - *lo + 1}
		if err := tree.Delete(k, rid); err != nil {
			fmt.Fprintf(os.Stderr, "ERR: delete %d: %v\n", k, err)
			return
		}
	}
}

func runDeleteScan(tree *btree.Tree, fields []string) {
	lo, hi, err := parseRange(fields)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERR:", err)
		return
	}
	scan, err := tree.OpenScan(lo, hi)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERR:", err)
		return
	}
	for {
		k, rid, err := scan.GetNext()
		if err == btree.ErrDone {
			return
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "ERR:", err)
			return
		}
		fmt.Printf("%d -> (%d, %d) [deleted]\n", k, rid.PageNo, rid.SlotNo)
		if err := scan.DeleteCurrent(); err != nil {
			fmt.Fprintln(os.Stderr, "ERR:", err)
			return
		}
	}
}

func runStats(tree *btree.Tree, printer *message.Printer) {
	st, err := tree.DumpStatistics()
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERR:", err)
		return
	}
	printer.Printf("instance       %s\n", st.InstanceID)
	printer.Printf("height         %d\n", st.Height)
	printer.Printf("index nodes    %d\n", st.NumIndexNodes)
	printer.Printf("leaves         %d\n", st.NumLeaves)
	printer.Printf("entries        %d\n", st.NumEntries)
	printer.Printf("avg fill       %.1f%%\n", st.AvgFillPercent)
}
