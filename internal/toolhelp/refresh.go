package toolhelp

import "context"

// Runner executes a tool's help_cmd_template argv and returns its raw
// output. internal/core adapts internal/driver.HeadlessDriver.Run (which
// returns a driver.Result) to this narrower interface so toolhelp does
// not need to depend on the driver package's result type.
type Runner interface {
	Run(ctx context.Context, argv []string, stdin string) (string, error)
}

// Refresh runs argv for tool via runner and stores the result, returning
// the fetched content.
func Refresh(ctx context.Context, c *Cache, runner Runner, tool string, argv []string) (string, error) {
	content, err := runner.Run(ctx, argv, "")
	if err != nil {
		return "", err
	}
	if err := c.Set(tool, content); err != nil {
		return "", err
	}
	return content, nil
}
