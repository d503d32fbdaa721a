// sweep.go computes the CV-QKD secret key rate for each entry in the
// cartesian product of a collection of different tuning parameters, e.g.
// fiber distance and excess noise, and outputs a CSV of the resulting
// rates and covariance bounds for each combination. It can additionally
// render the sweep as an HTML line chart.
package main

import (
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"strings"
	"text/template"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	chartopts "github.com/go-echarts/go-echarts/v2/opts"
	flag "github.com/spf13/pflag"

	"github.com/qosst/qosst-sim/cvqkd"
	"github.com/qosst/qosst-sim/cvqkd/modulation"
)

var (
	distance = flag.Float64Slice("distance", []float64{25},
		"The fiber distances in km, converted to transmittance at 0.2 dB/km.")
	va   = flag.Float64Slice("va", []float64{5}, "The modulation variances, in shot-noise units.")
	xi   = flag.Float64Slice("xi", []float64{0.02}, "The excess noises at the channel input, in shot-noise units.")
	eta  = flag.Float64Slice("eta", []float64{0.8}, "The detector efficiencies. An efficiency of 1 with zero electronic noise selects the ideal detector.")
	vel  = flag.Float64Slice("vel", []float64{0.01}, "The detector electronic noises, in shot-noise units.")
	beta = flag.Float64Slice("beta", []float64{cvqkd.DefaultBeta}, "The reconciliation efficiencies.")
	size = flag.IntSlice("size", []int{8}, "The QAM sizes per quadrature, e.g. 8 for a 64-QAM.")
	dim  = flag.IntSlice("dim", []int{64}, "The Fock-space truncation dimensions.")
	nu   = flag.Float64Slice("nu", []float64{0.1}, "The envelope parameters of the Gaussian-weighted QAM.")
	n    = flag.IntSlice("n", []int{int(1e5)}, "The numbers of symbols per Monte-Carlo run.")

	sim = flag.String("simulator", "asymptotic",
		"Which estimator to run: 'asymptotic' for the exact Gaussian-channel calculator, 'finite' for a Monte-Carlo run.")
	mod = flag.String("modulation", "binomial",
		"Alice's constellation: 'binomial', 'gaussianqam' or 'gaussian'.")
	seed = flag.Uint64("seed", 42, "The base seed for Monte-Carlo runs. Each run derives its own stream.")
	html = flag.String("html", "", "If non-empty, also render the sweep as a line chart to this HTML file.")
)

var (
	inputs  = []string{"distance", "va", "xi", "eta", "vel", "beta", "size", "dim", "nu", "n"}
	columns = []string{"Distance", "Va", "Xi", "Eta", "Vel", "Beta", "Size", "Dim", "Nu", "NSymbols",
		"SNR", "V", "W", "Z", "SKR", "Succeeded"}
)

// An Experiment packages together the result of simulating a single
// parameterization for easy formatting.
type Experiment struct {
	// Fields corresponding to experiment parameters
	Distance float64
	Va       float64
	Xi       float64
	Eta, Vel float64
	Beta     float64
	Size     int
	Dim      int
	Nu       float64
	NSymbols int

	// Fields corresponding to experiment results
	SNR       float64
	V, W, Z   float64
	SKR       float64
	Succeeded bool
}

func main() {
	flag.Parse()
	fmt.Println(header())
	tmpl := template.Must(template.New("line").Parse(lineTmpl()))
	var args [][]interface{}
	for _, inp := range inputs {
		args = append(args, lookupInput(inp))
	}
	mods := make(map[modKey]modulation.Modulation)
	var exps []*Experiment
	var run uint64
	applyCartesian(func(args []interface{}) {
		exp := &Experiment{
			Distance: args[inpIndex("distance")].(float64),
			Va:       args[inpIndex("va")].(float64),
			Xi:       args[inpIndex("xi")].(float64),
			Eta:      args[inpIndex("eta")].(float64),
			Vel:      args[inpIndex("vel")].(float64),
			Beta:     args[inpIndex("beta")].(float64),
			Size:     args[inpIndex("size")].(int),
			Dim:      args[inpIndex("dim")].(int),
			Nu:       args[inpIndex("nu")].(float64),
			NSymbols: args[inpIndex("n")].(int),
		}
		run++
		if err := simulate(exp, mods, run); err != nil {
			log.Printf("Simulating %+v: %v", *exp, err)
		}
		if err := tmpl.Execute(os.Stdout, exp); err != nil {
			log.Fatalf("BUG: could not fill in line template: %v", err)
		}
		exps = append(exps, exp)
	}, args)
	if *html != "" {
		if err := renderChart(*html, exps); err != nil {
			log.Fatalf("Rendering %s: %v", *html, err)
		}
	}
}

func inpIndex(v string) int {
	for i, inp := range inputs {
		if inp == v {
			return i
		}
	}
	return -1
}

// modKey identifies a constellation up to the parameters that shape it,
// so that a sweep over channel and detector settings reuses the same
// Fock-space reduction instead of rebuilding it per row.
type modKey struct {
	kind      string
	dim, size int
	va, nu    float64
}

func buildModulation(exp *Experiment, cache map[modKey]modulation.Modulation) (modulation.Modulation, error) {
	key := modKey{kind: *mod, dim: exp.Dim, size: exp.Size, va: exp.Va}
	if *mod == "gaussianqam" {
		key.nu = exp.Nu
	}
	if m, ok := cache[key]; ok {
		return m, nil
	}
	var m modulation.Modulation
	var err error
	switch *mod {
	case "binomial":
		m, err = modulation.NewBinomial(exp.Dim, exp.Size, exp.Va)
	case "gaussianqam":
		m, err = modulation.NewGaussianQAM(exp.Dim, exp.Size, exp.Va, exp.Nu)
	case "gaussian":
		m, err = modulation.NewGaussian(exp.Va)
	default:
		return nil, fmt.Errorf("unknown modulation %q", *mod)
	}
	if err != nil {
		return nil, err
	}
	cache[key] = m
	return m, nil
}

func simulate(exp *Experiment, mods map[modKey]modulation.Modulation, run uint64) error {
	m, err := buildModulation(exp, mods)
	if err != nil {
		return err
	}
	ch, err := cvqkd.NewGaussianChannel(cvqkd.Transmission(exp.Distance), exp.Xi)
	if err != nil {
		return err
	}
	var det cvqkd.Detector
	if exp.Eta == 1 && exp.Vel == 0 {
		det = cvqkd.IdealHeterodyne{}
	} else {
		det, err = cvqkd.NewNoisyHeterodyne(exp.Eta, exp.Vel)
		if err != nil {
			return err
		}
	}
	opts := cvqkd.Opts{
		Modulation: m,
		Channel:    ch,
		Detector:   det,
		Beta:       exp.Beta,
		NSymbols:   exp.NSymbols,
		Rand:       rand.NewPCG(*seed, run),
	}
	var s cvqkd.Simulator
	switch {
	case *sim == "finite":
		s, err = cvqkd.NewFiniteSize(opts)
	case *mod == "gaussian":
		s, err = cvqkd.NewGaussianModulationAsymptotic(opts)
	default:
		s, err = cvqkd.NewGaussianChannelAsymptotic(opts)
	}
	if err != nil {
		return err
	}
	exp.SNR = s.SNR()
	exp.V, exp.W, exp.Z, err = s.Covariance()
	if err != nil {
		return err
	}
	exp.SKR, err = s.SKR()
	exp.Succeeded = err == nil
	return err
}

func renderChart(path string, exps []*Experiment) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(chartopts.Title{Title: "Secret key rate"}),
		charts.WithXAxisOpts(chartopts.XAxis{Name: "Distance (km)"}),
		charts.WithYAxisOpts(chartopts.YAxis{Name: "SKR (bit/symbol)"}),
		charts.WithTooltipOpts(chartopts.Tooltip{Show: chartopts.Bool(true)}),
	)
	var xs []string
	var skr, snr []chartopts.LineData
	for _, exp := range exps {
		if !exp.Succeeded {
			continue
		}
		xs = append(xs, fmt.Sprintf("%g", exp.Distance))
		skr = append(skr, chartopts.LineData{Value: exp.SKR})
		snr = append(snr, chartopts.LineData{Value: exp.SNR})
	}
	line.SetXAxis(xs).
		AddSeries("SKR", skr).
		AddSeries("SNR", snr)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return components.NewPage().AddCharts(line).Render(f)
}

func header() string {
	return strings.Join(columns, ", ")
}

func lineTmpl() string {
	var els []string
	for _, c := range columns {
		els = append(els, "{{."+c+"}}")
	}
	return strings.Join(els, ", ") + "\n"
}

func lookupInput(name string) []interface{} {
	var r []interface{}
	if v, err := flag.CommandLine.GetIntSlice(name); err == nil {
		for _, val := range v {
			r = append(r, val)
		}
	} else if v, err := flag.CommandLine.GetFloat64Slice(name); err == nil {
		for _, val := range v {
			r = append(r, val)
		}
	} else {
		log.Fatalf("Unknown type for input %s", name)
	}
	return r
}

func applyCartesian(f func([]interface{}), args [][]interface{}) {
	for i := range args {
		if len(args[i]) == 1 {
			continue
		}
		l := make([][]interface{}, len(args))
		r := make([][]interface{}, len(args))
		copy(l, args)
		copy(r, args)
		l[i] = args[i][:1]
		r[i] = args[i][1:]
		applyCartesian(f, l)
		applyCartesian(f, r)
		return
	}
	x := make([]interface{}, 0, len(args))
	for _, a := range args {
		x = append(x, a[0])
	}
	f(x)
}
