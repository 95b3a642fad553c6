package lcd

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gonum.org/v1/gonum/stat"

	"lcdct/internal/models"
)

// WriteCSV writes the table with a header row. Floats use the shortest exact
// representation so equal tables produce identical bytes.
func WriteCSV(w io.Writer, t *models.ResultTable) error {
	cw := csv.NewWriter(w)
	extras := t.ExtraColumns()
	if err := cw.Write(t.Columns()); err != nil {
		return fmt.Errorf("error writing CSV header: %w", err)
	}
	for _, r := range t.Rows {
		row := []string{
			r.Observer,
			strconv.Itoa(r.Reader),
			formatFloat(r.AUC),
			formatFloat(r.SNR),
			formatFloat(r.InsertHU),
			formatFloat(r.InsertDiameterPix),
		}
		for _, k := range extras {
			row = append(row, r.Extra[k])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("error writing CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Summary aggregates the readers of one observer, insert and metadata combination
type Summary struct {
	Observer          string
	InsertHU          float64
	InsertDiameterPix float64
	Extra             map[string]string
	Readers           int
	AUCMean, AUCStd   float64
	SNRMean, SNRStd   float64
}

// Summarize groups rows by observer, insert and metadata and reports the mean and
// standard deviation of AUC and SNR. Groups keep the order of their first row.
func Summarize(t *models.ResultTable) []Summary {
	extras := t.ExtraColumns()
	index := make(map[string]int)
	var groups [][]models.ReaderRecord
	for _, r := range t.Rows {
		key := groupKey(r, extras)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], r)
	}

	out := make([]Summary, 0, len(groups))
	for _, g := range groups {
		auc := make([]float64, len(g))
		snr := make([]float64, len(g))
		for i, r := range g {
			auc[i], snr[i] = r.AUC, r.SNR
		}
		s := Summary{
			Observer:          g[0].Observer,
			InsertHU:          g[0].InsertHU,
			InsertDiameterPix: g[0].InsertDiameterPix,
			Extra:             g[0].Extra,
			Readers:           len(g),
		}
		s.AUCMean, s.AUCStd = meanStd(auc)
		s.SNRMean, s.SNRStd = meanStd(snr)
		out = append(out, s)
	}
	return out
}

// meanStd returns the mean and unbiased standard deviation; a single value has zero spread
func meanStd(x []float64) (mean, std float64) {
	if len(x) == 1 {
		return x[0], 0
	}
	return stat.MeanStdDev(x, nil)
}

func groupKey(r models.ReaderRecord, extras []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%g|%g", r.Observer, r.InsertHU, r.InsertDiameterPix)
	for _, k := range extras {
		fmt.Fprintf(&b, "|%s=%s", k, r.Extra[k])
	}
	return b.String()
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// WriteSummary renders Summarize(t) as a bordered text table
func WriteSummary(w io.Writer, t *models.ResultTable) error {
	extras := t.ExtraColumns()
	sort.Strings(extras)

	headers := append(append([]string{}, extras...), "observer", "insert_HU", "diameter", "readers", "AUC", "SNR")
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for _, s := range Summarize(t) {
		row := make([]string, 0, len(headers))
		for _, k := range extras {
			row = append(row, s.Extra[k])
		}
		row = append(row,
			s.Observer,
			formatFloat(s.InsertHU),
			formatFloat(s.InsertDiameterPix),
			strconv.Itoa(s.Readers),
			fmt.Sprintf("%.3f ± %.3f", s.AUCMean, s.AUCStd),
			fmt.Sprintf("%.2f ± %.2f", s.SNRMean, s.SNRStd),
		)
		tbl.Row(row...)
	}

	if _, err := fmt.Fprintln(w, tbl.Render()); err != nil {
		return fmt.Errorf("error writing summary: %w", err)
	}
	return nil
}
