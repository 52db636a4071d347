package excel

import "fmt"

// Config holds the settings for the Excel-backed store. The target sheet is
// chosen per operation, so only the workbook path lives here.
type Config struct {
	// FilePath is the .xlsx file holding the mirror. It is created on the
	// first write.
	FilePath string
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is required")
	}
	if c.FilePath == "" {
		return fmt.Errorf("file path is required")
	}
	return nil
}
