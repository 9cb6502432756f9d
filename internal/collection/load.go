package collection

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/repeater/internal/request"
	"github.com/torosent/repeater/internal/variables"
)

type fileCollection struct {
	Name         string               `yaml:"name"`
	Variables    yaml.Node            `yaml:"variables"`
	Environments map[string]yaml.Node `yaml:"environments"`
	Requests     []fileRequest        `yaml:"requests"`
	Folders      []fileFolder         `yaml:"folders"`
}

type fileFolder struct {
	Name     string        `yaml:"name"`
	Requests []fileRequest `yaml:"requests"`
	Folders  []fileFolder  `yaml:"folders"`
}

type fileRequest struct {
	Name      string        `yaml:"name"`
	Method    string        `yaml:"method"`
	URL       string        `yaml:"url"`
	Protocol  string        `yaml:"protocol"`
	Headers   yaml.Node     `yaml:"headers"`
	Body      string        `yaml:"body"`
	BodyFile  string        `yaml:"body_file"`
	Auth      fileAuth      `yaml:"auth"`
	WebSocket fileWebSocket `yaml:"websocket"`
}

type fileAuth struct {
	Type         string   `yaml:"type"`
	Token        string   `yaml:"token"`
	Username     string   `yaml:"username"`
	Password     string   `yaml:"password"`
	Key          string   `yaml:"key"`
	Value        string   `yaml:"value"`
	In           string   `yaml:"in"`
	TokenURL     string   `yaml:"token_url"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Scopes       []string `yaml:"scopes"`
}

type fileWebSocket struct {
	Messages        []string `yaml:"messages"`
	MessageInterval string   `yaml:"message_interval"`
	ReceiveTimeout  string   `yaml:"receive_timeout"`
}

// LoadFile reads a YAML (or JSON) collection file.
func LoadFile(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read collection: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a collection document. Variable and header order follows the
// document.
func Parse(data []byte) (*Collection, error) {
	var doc fileCollection
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse collection: %w", err)
	}

	vars, err := orderedSet(&doc.Variables, "variables")
	if err != nil {
		return nil, err
	}

	envs := make(map[string]variables.Set, len(doc.Environments))
	for name, node := range doc.Environments {
		node := node
		set, err := orderedSet(&node, "environment "+name)
		if err != nil {
			return nil, err
		}
		envs[name] = set
	}

	root, err := convertFolder(fileFolder{Requests: doc.Requests, Folders: doc.Folders})
	if err != nil {
		return nil, err
	}

	return New(doc.Name, vars, envs, root)
}

func convertFolder(f fileFolder) (Folder, error) {
	out := Folder{Name: f.Name}
	for _, r := range f.Requests {
		tmpl, err := convertRequest(r)
		if err != nil {
			return Folder{}, fmt.Errorf("request %q: %w", r.Name, err)
		}
		out.Requests = append(out.Requests, tmpl)
	}
	for _, sub := range f.Folders {
		folder, err := convertFolder(sub)
		if err != nil {
			return Folder{}, fmt.Errorf("folder %q: %w", sub.Name, err)
		}
		out.Folders = append(out.Folders, folder)
	}
	return out, nil
}

func convertRequest(r fileRequest) (request.Template, error) {
	protocol, err := request.ParseProtocol(r.Protocol)
	if err != nil {
		return request.Template{}, err
	}
	headers, err := headerList(&r.Headers)
	if err != nil {
		return request.Template{}, err
	}
	if r.Body != "" && strings.TrimSpace(r.BodyFile) != "" {
		return request.Template{}, fmt.Errorf("body and body_file are mutually exclusive")
	}

	authType := request.AuthType(strings.ToLower(strings.TrimSpace(r.Auth.Type)))
	switch authType {
	case request.AuthNone, request.AuthBearer, request.AuthBasic, request.AuthAPIKey, request.AuthOAuth2ClientCredentials:
	default:
		return request.Template{}, fmt.Errorf("unsupported auth type %q", r.Auth.Type)
	}

	interval, err := optionalDuration(r.WebSocket.MessageInterval, "websocket.message_interval")
	if err != nil {
		return request.Template{}, err
	}
	receive, err := optionalDuration(r.WebSocket.ReceiveTimeout, "websocket.receive_timeout")
	if err != nil {
		return request.Template{}, err
	}

	return request.Template{
		Name:     strings.TrimSpace(r.Name),
		Method:   r.Method,
		URL:      r.URL,
		Protocol: protocol,
		Headers:  headers,
		Body:     r.Body,
		BodyFile: r.BodyFile,
		Auth: request.Auth{
			Type:         authType,
			Token:        r.Auth.Token,
			Username:     r.Auth.Username,
			Password:     r.Auth.Password,
			Key:          r.Auth.Key,
			Value:        r.Auth.Value,
			In:           r.Auth.In,
			TokenURL:     r.Auth.TokenURL,
			ClientID:     r.Auth.ClientID,
			ClientSecret: r.Auth.ClientSecret,
			Scopes:       r.Auth.Scopes,
		},
		WebSocket: request.WebSocketOptions{
			Messages:        r.WebSocket.Messages,
			MessageInterval: interval,
			ReceiveTimeout:  receive,
		},
	}, nil
}

// orderedSet reads a mapping of scalars, keeping document order.
func orderedSet(node *yaml.Node, what string) (variables.Set, error) {
	var set variables.Set
	if node.Kind == 0 {
		return set, nil
	}
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return set, nil
	}
	if node.Kind != yaml.MappingNode {
		return set, fmt.Errorf("%s must be a mapping (line %d)", what, node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return set, fmt.Errorf("%s: value of %q must be a scalar (line %d)", what, key.Value, value.Line)
		}
		set.Put(key.Value, scalarString(value))
	}
	return set, nil
}

// headerList accepts either a mapping (name: value) or a list of
// {name, value} pairs; the list form allows repeated names.
func headerList(node *yaml.Node) ([]request.Header, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil, nil
		}
		return nil, fmt.Errorf("headers must be a mapping or a list (line %d)", node.Line)
	case yaml.MappingNode:
		set, err := orderedSet(node, "headers")
		if err != nil {
			return nil, err
		}
		headers := make([]request.Header, 0, set.Len())
		for _, k := range set.Keys() {
			v, _ := set.Get(k)
			headers = append(headers, request.Header{Name: k, Value: v})
		}
		return headers, nil
	case yaml.SequenceNode:
		var pairs []struct {
			Name  string `yaml:"name"`
			Value string `yaml:"value"`
		}
		if err := node.Decode(&pairs); err != nil {
			return nil, fmt.Errorf("headers: %w", err)
		}
		headers := make([]request.Header, 0, len(pairs))
		for _, p := range pairs {
			headers = append(headers, request.Header{Name: p.Name, Value: p.Value})
		}
		return headers, nil
	default:
		return nil, fmt.Errorf("headers must be a mapping or a list (line %d)", node.Line)
	}
}

func scalarString(n *yaml.Node) string {
	if n.Tag == "!!null" {
		return ""
	}
	return n.Value
}

func optionalDuration(s, field string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", field)
	}
	return d, nil
}
