package config

import (
	"time"

	"github.com/samobrien878/Williams-Data-Pipline/pkg/contracts"
)

// Application constants
const (
	// Application Info
	AppName    = "williams-data-pipeline"
	AppVersion = contracts.Version

	// EnvPrefix namespaces every environment variable (WDP_STORE_URI, ...)
	EnvPrefix = "WDP"

	// Store drivers and write modes. In insert mode every ingestion appends,
	// so the loop ingests each path at most once per run; a file rewritten
	// after ingestion is ignored until restart.
	DriverMongo     = "mongo"
	DriverSQLite    = "sqlite"
	WriteModeInsert = "insert"
	WriteModeUpsert = "upsert"

	// Store defaults, matching the lab deployment
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultDatabase          = "training_data"
	DefaultRawCollection     = "Raw_Data"
	DefaultSummaryCollection = "Daily summarys"
	DefaultSQLitePath        = "data/training_data.db"

	// Ingestion defaults
	DefaultWatchDir    = "data/incoming"
	DefaultFilePrefix  = "metrics"
	DefaultCutoff      = "2023-01-08"
	DefaultMinRatID    = 1
	DefaultMaxRatID    = 19
	DefaultSampleBytes = 10000

	// DateLayout is the layout of configured dates
	DateLayout = "2006-01-02"

	// Rate Limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	// Network Timeouts
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second
	WebSocketWriteWait  = 10 * time.Second

	// Logs
	DefaultLogsDir = "logs"
	DefaultLogFile = "logs/ingestor.log"
)
