package mcp

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/t3rn/pkg/utils/logging"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"
)

// Client manages connections to external MCP tool servers
type Client struct {
	servers map[string]*server
}

type server struct {
	name          string
	session       *mcp.ClientSession
	tools         []*mcp.Tool
	cacheDuration int
}

// ServerConfig is one MCP server entry of the configuration file
type ServerConfig struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"` // "stdio" or "http"
	Command   []string          `yaml:"command"`
	URL       string            `yaml:"url"`
	Env       map[string]string `yaml:"env"`

	// CacheDuration is the number of exchanges results of this server's tools stay in the
	// session tool cache. 0 disables caching.
	CacheDuration int `yaml:"cache_duration"`
}

// Config is the MCP configuration file layout
type Config struct {
	Servers []ServerConfig `yaml:"servers"`
}

// NewClient creates a new MCP client
func NewClient() *Client {
	return &Client{
		servers: make(map[string]*server),
	}
}

// Connect connects to an MCP server and lists its tools
func (c *Client) Connect(ctx context.Context, cfg ServerConfig) error {
	if _, exists := c.servers[cfg.Name]; exists {
		return goerr.New("server already connected", goerr.V("name", cfg.Name))
	}
	if cfg.CacheDuration < 0 {
		return goerr.New("cache_duration must not be negative", goerr.V("name", cfg.Name))
	}

	var transport mcp.Transport
	switch cfg.Transport {
	case "stdio":
		if len(cfg.Command) == 0 {
			return goerr.New("command is required for stdio transport", goerr.V("server", cfg.Name))
		}
		cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)
		if len(cfg.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range cfg.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}
		transport = &mcp.CommandTransport{Command: cmd}

	case "http":
		if cfg.URL == "" {
			return goerr.New("url is required for http transport", goerr.V("server", cfg.Name))
		}
		transport = &mcp.StreamableClientTransport{Endpoint: cfg.URL}

	default:
		return goerr.New("unsupported transport",
			goerr.V("transport", cfg.Transport),
			goerr.V("supported", []string{"stdio", "http"}))
	}

	mcpClient := mcp.NewClient(&mcp.Implementation{
		Name:    "t3rn",
		Version: "0.1.0",
	}, nil)

	session, err := mcpClient.Connect(ctx, transport, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to connect to MCP server", goerr.V("server", cfg.Name))
	}

	toolsResult, err := session.ListTools(ctx, nil)
	if err != nil {
		_ = session.Close()
		return goerr.Wrap(err, "failed to list tools", goerr.V("server", cfg.Name))
	}

	c.servers[cfg.Name] = &server{
		name:          cfg.Name,
		session:       session,
		tools:         toolsResult.Tools,
		cacheDuration: cfg.CacheDuration,
	}
	return nil
}

// Tools returns the tools of a connected server
func (c *Client) Tools(serverName string) ([]*mcp.Tool, error) {
	srv, exists := c.servers[serverName]
	if !exists {
		return nil, goerr.New("server not found", goerr.V("name", serverName))
	}
	return srv.tools, nil
}

// Servers returns names of all connected servers in sorted order
func (c *Client) Servers() []string {
	names := make([]string, 0, len(c.servers))
	for name := range c.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Client) cacheDuration(serverName string) int {
	if srv, ok := c.servers[serverName]; ok {
		return srv.cacheDuration
	}
	return 0
}

// CallTool calls a tool on a specific server
func (c *Client) CallTool(ctx context.Context, serverName string, toolName string, arguments map[string]any) (*mcp.CallToolResult, error) {
	srv, exists := c.servers[serverName]
	if !exists {
		return nil, goerr.New("server not found", goerr.V("name", serverName))
	}

	result, err := srv.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      toolName,
		Arguments: arguments,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to call tool",
			goerr.V("server", serverName),
			goerr.V("tool", toolName))
	}
	return result, nil
}

// Close closes all MCP server connections. All sessions are closed even if one fails.
func (c *Client) Close() error {
	var firstErr error
	for name, srv := range c.servers {
		if err := srv.session.Close(); err != nil && firstErr == nil {
			firstErr = goerr.Wrap(err, "failed to close session", goerr.V("server", name))
		}
	}
	c.servers = make(map[string]*server)
	return firstErr
}

// LoadConfig reads the MCP configuration file
func LoadConfig(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve config path", goerr.V("path", configPath))
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read MCP config file", goerr.V("path", absPath))
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse MCP config file", goerr.V("path", absPath))
	}
	return &cfg, nil
}

// LoadAndConnect loads the configuration and connects to every server. Servers that fail to
// connect are skipped with a warning. It returns nil when no config is given or nothing
// connected.
func LoadAndConnect(ctx context.Context, configPath string) (*Provider, error) {
	if configPath == "" {
		return nil, nil
	}
	logger := logging.From(ctx)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if len(cfg.Servers) == 0 {
		logger.Info("no MCP servers configured", "path", configPath)
		return nil, nil
	}

	client := NewClient()
	failed := 0
	for _, serverCfg := range cfg.Servers {
		if err := client.Connect(ctx, serverCfg); err != nil {
			logger.Warn("failed to connect to MCP server", "server", serverCfg.Name, "error", err)
			failed++
			continue
		}
		logger.Info("connected to MCP server", "server", serverCfg.Name)
	}

	if len(client.servers) == 0 {
		logger.Warn("no MCP servers connected", "failed", failed)
		return nil, nil
	}

	return NewProvider(client), nil
}
