package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/imonbus/safety-data-etl/internal/domain"
)

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	DataDir       string
	SurveyFile    string
	IncidentsFile string
	StreetsFile   string
	OutputPath    string

	Bound              orb.Bound
	Grid               domain.GridSpec
	StreetMinIncidents int
	HeatmapPointCap    int

	LogLevel  string
	LogFormat string

	// Optional Kafka publishing of neighborhood scores.
	KafkaBrokers     []string
	KafkaScoresTopic string
	KafkaEnabled     bool

	// Optional run archive and metrics push.
	ArchivePath     string
	PushgatewayAddr string
	MetricsJob      string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	bound := domain.DefaultBound
	if s := os.Getenv("SAFETY_BBOX"); s != "" {
		b, err := parseBound(s)
		if err != nil {
			return nil, err
		}
		bound = b
	}

	grid := domain.DefaultGrid
	if s := os.Getenv("GRID_LAT_STEP"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			return nil, errors.New("invalid GRID_LAT_STEP")
		}
		grid.LatStep = v
	}
	if s := os.Getenv("GRID_LON_STEP"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			return nil, errors.New("invalid GRID_LON_STEP")
		}
		grid.LonStep = v
	}

	minIncidents := 2
	if s := os.Getenv("STREET_MIN_INCIDENTS"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return nil, errors.New("invalid STREET_MIN_INCIDENTS")
		}
		minIncidents = n
	}

	pointCap := 500
	if s := os.Getenv("HEATMAP_POINT_CAP"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil, errors.New("invalid HEATMAP_POINT_CAP")
		}
		pointCap = n
	}

	kafkaBrokers := parseBrokers(os.Getenv("KAFKA_BROKERS"))
	kafkaEnabled := len(kafkaBrokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		DataDir:       envOrDefault("SAFETY_DATA_DIR", "dataset"),
		SurveyFile:    envOrDefault("SAFETY_SURVEY_FILE", "resource_sicurezza.csv"),
		IncidentsFile: envOrDefault("SAFETY_INCIDENTS_FILE", "incidenti_2023.csv"),
		StreetsFile:   envOrDefault("SAFETY_STREETS_FILE", "sinistri_2017.csv"),
		OutputPath:    envOrDefault("SAFETY_OUTPUT_PATH", filepath.Join("out", "safetyData.json")),

		Bound:              bound,
		Grid:               grid,
		StreetMinIncidents: minIncidents,
		HeatmapPointCap:    pointCap,

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "text"),

		KafkaBrokers:     kafkaBrokers,
		KafkaScoresTopic: envOrDefault("KAFKA_SCORES_TOPIC", "neighborhood-safety-scores"),
		KafkaEnabled:     kafkaEnabled,

		ArchivePath:     os.Getenv("ARCHIVE_PATH"),
		PushgatewayAddr: os.Getenv("PUSHGATEWAY_ADDR"),
		MetricsJob:      envOrDefault("METRICS_JOB", "safety-etl"),
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaScoresTopic == "" {
		return nil, errors.New("KAFKA_SCORES_TOPIC is required")
	}

	return cfg, nil
}

// SurveyPath is the survey CSV location under the data dir.
func (c *Config) SurveyPath() string { return filepath.Join(c.DataDir, c.SurveyFile) }

// IncidentsPath is the geolocated incidents CSV location under the data dir.
func (c *Config) IncidentsPath() string { return filepath.Join(c.DataDir, c.IncidentsFile) }

// StreetsPath is the street incident history CSV location under the data dir.
func (c *Config) StreetsPath() string { return filepath.Join(c.DataDir, c.StreetsFile) }

// parseBound reads "latMin,lonMin,latMax,lonMax" into an orb.Bound.
func parseBound(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, errors.New("SAFETY_BBOX must be latMin,lonMin,latMax,lonMax")
	}

	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, errors.New("invalid SAFETY_BBOX coordinate")
		}
		vals[i] = v
	}

	latMin, lonMin, latMax, lonMax := vals[0], vals[1], vals[2], vals[3]
	if latMin >= latMax || lonMin >= lonMax {
		return orb.Bound{}, errors.New("SAFETY_BBOX min must be below max")
	}

	return orb.Bound{
		Min: orb.Point{lonMin, latMin},
		Max: orb.Point{lonMax, latMax},
	}, nil
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
