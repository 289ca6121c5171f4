// Package sandbox is a client for a SandboxFusion style code execution
// service. Code is taken from markdown fenced blocks, posted to the
// service's run_code endpoint and gateway timeouts are retried with a linear
// backoff.
//
//	c := sandbox.NewClient()
//	res, err := c.Execute(ctx, "```python\nprint(1+1)\n```", sandbox.Request{})
//	fmt.Println(res.Stdout())
package sandbox
