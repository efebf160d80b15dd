package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/fumin/qspin"
	"github.com/fumin/qspin/basis"
	"github.com/fumin/qspin/hamiltonian"
	"github.com/fumin/qspin/mat"
	"github.com/fumin/qspin/operator"
)

const (
	fnameEigen      = "eig.csv"
	fnameDone       = "done.txt"
	fnameStatistics = "statistics.txt"
	dirnameHamilton = "hamiltonian"
	numEigen        = 3
	maxDenseDim     = 1500
	dbTimeout       = 10 * time.Minute
)

var (
	runDir  = flag.String("d", filepath.Join("runs", "qspin"), "run directory")
	maxL    = flag.Int("maxl", 12, "maximum chain length")
	workers = flag.Int("workers", 0, "number of workers, 0 means GOMAXPROCS")
	dbPath  = flag.String("db", "", "if set, also store every hamiltonian in this sqlite database")
	verbose = flag.Bool("v", false, "log assembly progress")
)

type Statistics struct {
	l int
	h float64
	qspin.Statistics
}

func getStatistics(dir string, b *basis.Basis) error {
	vvs, err := readEig(dir)
	if err != nil {
		return errors.Wrap(err, "")
	}

	stats, err := qspin.GetStatistics(b, vvs)
	if err != nil {
		return errors.Wrap(err, "")
	}

	bs, err := json.Marshal(stats)
	if err != nil {
		return errors.Wrap(err, "")
	}
	mPath := filepath.Join(dir, fnameStatistics)
	if err := os.WriteFile(mPath, bs, 0644); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func solveGround(ctx context.Context, dir string, b *basis.Basis, h float64) error {
	opts := operator.NewOptions().Workers(*workers).Verbose(*verbose)
	terms := qspin.TransverseFieldIsing([2]int{b.L(), 1}, h, true)
	ham, err := hamiltonian.New[float64](ctx, b, terms, nil, opts)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := storeHamiltonian(ctx, dir, b, ham.Static()); err != nil {
		return errors.Wrap(err, "")
	}

	var vvs []mat.ValVec
	if ham.Dim() <= maxDenseDim {
		vvs, err = ham.Eigen(0)
		if err != nil {
			return errors.Wrap(err, "")
		}
		vvs = vvs[:min(numEigen, len(vvs))]
	} else {
		val, vec, err := ham.GroundState(0)
		if err != nil {
			return errors.Wrap(err, "")
		}
		vvs = []mat.ValVec{{Val: complex(val, 0), Vec: vec}}
	}

	if err := writeEig(dir, vvs); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func storeHamiltonian(ctx context.Context, dir string, b *basis.Basis, m *mat.CSR[float64]) error {
	hdir := filepath.Join(dir, dirnameHamilton)
	if err := os.MkdirAll(hdir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}
	if err := m.COO().WriteCOO(hdir); err != nil {
		return errors.Wrap(err, "")
	}
	if *dbPath == "" {
		return nil
	}

	// One database file per sector, next to the requested path.
	path := fmt.Sprintf("%s.%d.%s", *dbPath, b.L(), filepath.Base(dir))
	disk, err := mat.NewDiskMatrix[float64](path, m.Rows(), m.Cols())
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer disk.Close()
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	if err := disk.Store(ctx, m.COO()); err != nil {
		return errors.Wrap(err, path)
	}
	return nil
}

func solve(ctx context.Context, dir string, l int, h float64) error {
	donePath := filepath.Join(dir, fnameDone)
	if _, err := os.Stat(donePath); err == nil {
		return nil
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}

	// The ground state of the ferromagnetic chain is even under both reflection and spin inversion.
	b, err := basis.New(l, basis.NewOptions().Pauli(true).PBlock(1).ZBlock(1).Workers(*workers))
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := solveGround(ctx, dir, b, h); err != nil {
		return errors.Wrap(err, "")
	}
	if err := getStatistics(dir, b); err != nil {
		return errors.Wrap(err, "")
	}

	if err := os.WriteFile(donePath, nil, 0644); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func gather(dir string) ([]Statistics, error) {
	stats := make([]Statistics, 0)
	lEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	for _, lent := range lEntries {
		l, err := strconv.Atoi(lent.Name())
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%#v", lent))
		}

		ldir := filepath.Join(dir, lent.Name())
		hEntries, err := os.ReadDir(ldir)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%#v", lent))
		}
		for _, hent := range hEntries {
			h, err := strconv.ParseFloat(hent.Name(), 64)
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("%#v %#v", lent, hent))
			}

			hdir := filepath.Join(ldir, hent.Name())
			sb, err := os.ReadFile(filepath.Join(hdir, fnameStatistics))
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("%#v %#v", lent, hent))
			}
			s := Statistics{l: l, h: h}
			if err := json.Unmarshal(sb, &s); err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("%#v %#v", lent, hent))
			}
			stats = append(stats, s)
		}
	}
	return stats, nil
}

func readEig(dir string) ([]mat.ValVec, error) {
	fpath := filepath.Join(dir, fnameEigen)
	f, err := os.Open(fpath)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer f.Close()
	r := csv.NewReader(f)

	record, err := r.Read()
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	vvs := make([]mat.ValVec, len(record))
	for j, s := range record {
		v, err := strconv.ParseComplex(s, 128)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		vvs[j].Val = v
	}

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "")
		}

		for j, s := range record {
			v, err := strconv.ParseComplex(s, 128)
			if err != nil {
				return nil, errors.Wrap(err, "")
			}
			vvs[j].Vec = append(vvs[j].Vec, v)
		}
	}

	return vvs, nil
}

func writeEig(dir string, vvs []mat.ValVec) error {
	fpath := filepath.Join(dir, fnameEigen)
	f, err := os.Create(fpath)
	if err != nil {
		return errors.Wrap(err, "")
	}
	w := csv.NewWriter(f)

	row := make([]string, len(vvs))
	for j, vv := range vvs {
		row[j] = strconv.FormatComplex(vv.Val, 'f', -1, 128)
	}
	if err1 := w.Write(row); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	if len(vvs) > 0 {
		for i := range len(vvs[0].Vec) {
			for j, vv := range vvs {
				row[j] = strconv.FormatComplex(vv.Vec[i], 'f', -1, 128)
			}
			if err1 := w.Write(row); err1 != nil && err == nil {
				err = errors.Wrap(err1, "")
				break
			}
		}
	}

	w.Flush()
	if err1 := w.Error(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	if err1 := f.Close(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	return err
}

func eigenValue(s Statistics, i int) float64 {
	if i >= len(s.EigenValue) {
		return math.NaN()
	}
	return s.EigenValue[i]
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	if err := mainWithErr(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func mainWithErr() error {
	ctx := context.Background()
	if err := os.MkdirAll(*runDir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}

	type config struct {
		l int
		h float64
	}
	configs := make([]config, 0)
	const tcGuess = 1
	tcLog := math.Log10(tcGuess)
	for l := 4; l <= *maxL; l += 2 {
		hLogs := []float64{-2, -1.5, -1, 1, 1.5, 2}
		for _, hl := range []float64{0.05, 0.1, 0.2, 0.3, 0.4, 0.5} {
			hLogs = append(hLogs, tcLog+hl)
			hLogs = append(hLogs, tcLog-hl)
		}
		for _, hl := range hLogs {
			configs = append(configs, config{l: l, h: math.Pow(10, hl)})
		}
	}

	// Solve for the hamiltonian.
	for _, c := range configs {
		dir := filepath.Join(*runDir, strconv.Itoa(c.l), fmt.Sprintf("%f", c.h))
		if err := solve(ctx, dir, c.l, c.h); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%d %f", c.l, c.h))
		}
		log.Printf("%d %f", c.l, c.h)
	}

	// Gather results and print them.
	stats, err := gather(*runDir)
	if err != nil {
		return errors.Wrap(err, "")
	}
	fmt.Printf("l,h,e0,e1,e2,m,binder\n")
	for _, s := range stats {
		fmt.Printf("%d,%f,%f,%f,%f,%f,%f\n", s.l, s.h, eigenValue(s, 0), eigenValue(s, 1), eigenValue(s, 2), s.Magnetization, s.BinderCumulant)
	}
	return nil
}
