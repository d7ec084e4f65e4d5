package repository

// Default store locations.
const (
	defaultDataFile   = "pet_data.json"
	defaultSQLitePath = "pet_data.db"
)

type settings struct {
	dataFile    string
	sqlitePath  string
	postgresDSN string
}

func defaultSettings() settings {
	return settings{
		dataFile:   defaultDataFile,
		sqlitePath: defaultSQLitePath,
	}
}

// Option applies a configuration option to Open.
type Option func(*settings)

// WithDataFile sets the JSON file used by the file driver.
func WithDataFile(path string) Option {
	return func(s *settings) {
		if path != "" {
			s.dataFile = path
		}
	}
}

// WithSQLitePath sets the database file used by the sqlite driver.
func WithSQLitePath(path string) Option {
	return func(s *settings) {
		if path != "" {
			s.sqlitePath = path
		}
	}
}

// WithPostgresDSN sets the connection string used by the postgres driver.
func WithPostgresDSN(dsn string) Option {
	return func(s *settings) {
		s.postgresDSN = dsn
	}
}
