// Command genfixtures generates the three input CSVs the pipeline consumes,
// shaped like the real Bari exports: verbose snake_case survey headers, blank
// neighborhood labels, answers outside the score vocabulary, out-of-bbox and
// unparseable coordinates, and heavily repeated street names.
//
// Usage:
//
//	go run ./cmd/genfixtures -out-dir dataset -survey-rows 400 -incidents 1200 -seed 7
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

var neighborhoods = []string{
	"Murat", "Libertà", "Madonnella", "Japigia", "Carrassi", "Poggiofranco",
	"San Paolo", "Stanic", "San Girolamo", "Carbonara", "San Pasquale",
	"Torre a Mare", "Palese", "Santo Spirito",
}

var streetNames = []string{
	"VIA NAPOLI", "CORSO CAVOUR", "VIA AMENDOLA", "VIA GENTILE",
	"STRADA STATALE 16", "VIA CAPRUZZI", "CORSO VITTORIO EMANUELE II",
	"VIA SPARANO DA BARI", "VIA BRIGATA REGINA", "LUNGOMARE NAZARIO SAURO",
	"VIA FANELLI", "VIALE UNITA' D'ITALIA", "VIA TRIDENTE", "VIA OBERDAN",
	"VIA CADUTI DI VIA FANI",
}

var incidentTypes = []string{
	"tamponamento", "investimento pedone", "scontro laterale",
	"scontro frontale", "fuoriuscita autonoma",
}

var surveyHeader = []string{
	"informazioni_cronologiche",
	"in_quale_quartiere_abita",
	"problemiquartiere_spaccio_di_droga_scala_1",
	"problemiquartiere_spaccio_di_droga_scala_2",
	"problemiquartiere_presenza_di_criminali_scala_1",
	"problemiquartiere_presenza_di_criminali_scala_2",
	"problemiquartiere_ragazzini_molesti_scala_1",
	"problemiquartiere_ragazzini_molesti_scala_2",
	"problemiquartiere_scarsa_illuminazione_scala_1",
	"problemiquartiere_scarsa_illuminazione_scala_2",
	"problemiquartiere_degrado_marciapiedi_scala_1",
	"problemiquartiere_degrado_marciapiedi_scala_2",
	"problemiquartiere_barboni_ubriachi_scala_1",
	"problemiquartiere_barboni_ubriachi_scala_2",
	"luoghiinsicurezza_stazione_centrale",
	"luoghiinsicurezza_parco_due_giugno",
	"luoghiinsicurezza_lungomare",
	"luoghiinsicurezza_mercato_coperto",
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "dataset", "output directory for the CSV fixtures")
	surveyRows := flag.Int("survey-rows", 400, "number of survey responses")
	incidents := flag.Int("incidents", 1200, "number of incident rows")
	seed := flag.Int64("seed", 1, "rng seed; a fixed seed reproduces the same fixtures")
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(*seed))

	if err := writeSurvey(filepath.Join(*outDir, "resource_sicurezza.csv"), rng, *surveyRows); err != nil {
		return fmt.Errorf("writing survey: %w", err)
	}
	log.Printf("survey: %d rows", *surveyRows)

	if err := writeIncidents(filepath.Join(*outDir, "incidenti_2023.csv"), rng, *incidents); err != nil {
		return fmt.Errorf("writing incidents: %w", err)
	}
	log.Printf("incidents: %d rows", *incidents)

	if err := writeStreets(filepath.Join(*outDir, "sinistri_2017.csv"), rng, *incidents); err != nil {
		return fmt.Errorf("writing streets: %w", err)
	}
	log.Printf("streets: %d rows", *incidents)

	return nil
}

func writeSurvey(path string, rng *rand.Rand, rows int) error {
	base := time.Date(2023, time.October, 2, 9, 0, 0, 0, time.UTC)

	records := make([][]string, 0, rows)
	for i := 0; i < rows; i++ {
		rec := make([]string, 0, len(surveyHeader))
		rec = append(rec, base.Add(time.Duration(i)*7*time.Minute).Format("2006/01/02 15:04:05"))
		rec = append(rec, pickNeighborhood(rng))
		for p := 0; p < 6; p++ {
			rec = append(rec, pickYesNo(rng), pickIntensity(rng))
		}
		for u := 0; u < 4; u++ {
			rec = append(rec, pickSelected(rng))
		}
		records = append(records, rec)
	}

	return writeCSV(path, surveyHeader, records)
}

func writeIncidents(path string, rng *rand.Rand, rows int) error {
	header := []string{"data_ora_incidente", "latitudine", "longitudine", "tipologia"}
	base := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

	records := make([][]string, 0, rows)
	for i := 0; i < rows; i++ {
		var lat, lon string
		switch r := rng.Intn(100); {
		case r < 2:
			// export gaps
		case r < 4:
			lat, lon = "n/d", "n/d"
		case r < 9:
			// outside the Bari bbox
			lat = fmt.Sprintf("%.6f", 41.3+0.5*rng.Float64())
			lon = fmt.Sprintf("%.6f", 16.72+0.36*rng.Float64())
		default:
			lat = fmt.Sprintf("%.6f", 41.05+0.11*rng.Float64())
			lon = fmt.Sprintf("%.6f", 16.80+0.20*rng.Float64())
		}

		when := base.Add(time.Duration(rng.Intn(365*24)) * time.Hour)
		records = append(records, []string{
			when.Format("2006-01-02 15:04"),
			lat,
			lon,
			incidentTypes[rng.Intn(len(incidentTypes))],
		})
	}

	return writeCSV(path, header, records)
}

func writeStreets(path string, rng *rand.Rand, rows int) error {
	header := []string{"anno", "denominazione_strada", "feriti"}

	records := make([][]string, 0, rows)
	for i := 0; i < rows; i++ {
		name := ""
		if rng.Intn(100) > 0 {
			// Squared draw skews the counts toward the first streets, so the
			// incident floor has both survivors and casualties.
			r := rng.Float64()
			name = streetNames[int(r*r*float64(len(streetNames)))]
		}
		records = append(records, []string{
			"2017",
			name,
			strconv.Itoa(rng.Intn(4)),
		})
	}

	return writeCSV(path, header, records)
}

func writeCSV(path string, header []string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

func pickNeighborhood(rng *rand.Rand) string {
	if rng.Intn(100) < 2 {
		return ""
	}
	return neighborhoods[rng.Intn(len(neighborhoods))]
}

func pickYesNo(rng *rand.Rand) string {
	switch r := rng.Intn(100); {
	case r < 45:
		return "Sì"
	case r < 90:
		return "No"
	case r < 95:
		return "Non saprei"
	default:
		return ""
	}
}

func pickIntensity(rng *rand.Rand) string {
	switch r := rng.Intn(100); {
	case r < 18:
		return "Molto"
	case r < 23:
		return "Moltissimo"
	case r < 53:
		return "Abbastanza"
	case r < 75:
		return "Poco"
	case r < 90:
		return "Per nulla"
	case r < 95:
		return "Non saprei"
	default:
		return ""
	}
}

func pickSelected(rng *rand.Rand) string {
	if rng.Intn(100) < 30 {
		return "Selezionato"
	}
	return ""
}
