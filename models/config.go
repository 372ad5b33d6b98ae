package models

import "time"

type Config struct {
	Debug  bool   `envconfig:"GOHAN_DEBUG"`
	SemVer string `envconfig:"GOHAN_SEMVER" default:"0.1.0"`

	ServiceContact string `envconfig:"GOHAN_SERVICE_CONTACT"`

	Api struct {
		Port            string `envconfig:"GOHAN_API_INTERNAL_PORT" default:"5000"`
		VcfPath         string `envconfig:"GOHAN_API_VCF_PATH"`
		BatchSize       int    `envconfig:"GOHAN_API_BATCH_SIZE" default:"1000"`
		LoadConcurrency int    `envconfig:"GOHAN_API_LOAD_CONCURRENCY" default:"4"`
		Backend         string `envconfig:"GOHAN_API_BACKEND" default:"elasticsearch"`
	}
	Elasticsearch struct {
		Url      string `envconfig:"GOHAN_ES_URL" default:"http://localhost:9200"`
		Username string `envconfig:"GOHAN_ES_USERNAME"`
		Password string `envconfig:"GOHAN_ES_PASSWORD"`
		Index    string `envconfig:"GOHAN_ES_INDEX" default:"variants"`
	}
	WideColumn struct {
		Path      string `envconfig:"GOHAN_WC_PATH" default:"/data/variants"`
		InMemory  bool   `envconfig:"GOHAN_WC_IN_MEMORY"`
		SqlDriver string `envconfig:"GOHAN_WC_SQL_DRIVER" default:"sqlite"`
		SqlDsn    string `envconfig:"GOHAN_WC_SQL_DSN" default:"file:/data/variants.db?_pragma=busy_timeout(5000)"`
	}
	Query struct {
		DefaultTimeout   time.Duration `envconfig:"GOHAN_QUERY_DEFAULT_TIMEOUT" default:"20s"`
		MaxTimeout       time.Duration `envconfig:"GOHAN_QUERY_MAX_TIMEOUT" default:"5m"`
		DefaultBatchSize int           `envconfig:"GOHAN_QUERY_BATCH_SIZE" default:"100"`
		MaxResultWindow  int           `envconfig:"GOHAN_QUERY_MAX_RESULT_WINDOW" default:"10000"`
	}
	Metadata struct {
		Path string `envconfig:"GOHAN_METADATA_PATH" default:"/data/catalog.yml"`
	}
}

const (
	BACKEND_ELASTICSEARCH = "elasticsearch"
	BACKEND_WIDECOLUMN    = "widecolumn"
)
