package sheetsync

// Config carries the fixed defaults for sheet operations. It is passed
// explicitly into the dispatcher and syncer at construction time; requests
// may override the sheet name and identifier column per call, and those
// overrides win.
type Config struct {
	// SheetName is the default target sheet.
	SheetName string

	// IDColumn is the default 1-based column index holding identifiers.
	IDColumn int

	// SecretKey, when non-empty, must match the secret_key field of every
	// request handled by the dispatcher.
	SecretKey string
}

// DefaultConfig returns the defaults the original deployment used: the
// deal-list sheet with identifiers in column A.
func DefaultConfig() Config {
	return Config{
		SheetName: "案件一覧",
		IDColumn:  1,
	}
}

func (c Config) sheetOr(override string) string {
	if override != "" {
		return override
	}
	return c.SheetName
}

func (c Config) idColumnOr(override int) int {
	if override > 0 {
		return override
	}
	if c.IDColumn > 0 {
		return c.IDColumn
	}
	return 1
}
