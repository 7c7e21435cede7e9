// Package metadata implements a client for the platform's Metadata
// API: retrieving org metadata as zipped component trees, deploying
// trees back, typed builders for common components and structural
// comparison of metadata directories.
package metadata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kinetic/poll"
	"kinetic/session"
)

type Client struct {
	soap *soapClient
	poll poll.Config
}

type Option func(*Client)

func WithPollConfig(cfg poll.Config) Option {
	return func(c *Client) { c.poll = cfg }
}

func New(sess *session.Session, opts ...Option) *Client {
	c := &Client{soap: &soapClient{sess: sess}, poll: poll.DefaultConfig()}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// RetrieveOptions tunes one retrieve call.
type RetrieveOptions struct {
	// Components restricts types to specific members. Types absent
	// from the map are retrieved with the wildcard.
	Components map[string][]string
	// Timeout bounds the wait; non-positive means unlimited.
	Timeout time.Duration
	// OnProgress runs once per status check with the remote state name.
	OnProgress func(state string)
}

// Retrieve pulls the named component types from the org and extracts
// them under outputDir. The call blocks until the remote operation
// finishes; retrieve has no partial result to return early.
func (c *Client) Retrieve(ctx context.Context, componentTypes []string, outputDir string, opts RetrieveOptions) (*RetrieveResult, error) {
	manifest := NewManifest(c.soap.sess.APIVersion, componentTypes...)
	for t, members := range opts.Components {
		manifest.Add(t, members...)
	}

	packageXML, err := manifest.XML()
	if err != nil {
		return nil, err
	}

	asyncID, err := c.soap.retrieve(ctx, packageXML)
	if err != nil {
		return nil, err
	}

	fetch := func(ctx context.Context) (poll.Status, error) {
		return c.soap.checkRetrieveStatus(ctx, asyncID)
	}

	status, err := c.wait(ctx, fetch, opts.Timeout, opts.OnProgress)
	final := asRetrieveResult(asyncID, status)
	if err != nil {
		return final, err
	}

	st := status.(retrieveStatus)
	if len(st.zipData) > 0 {
		if err := unzipTo(st.zipData, outputDir); err != nil {
			return final, err
		}
	}

	return final, nil
}

// DeployOptions tunes one deploy call.
type DeployOptions struct {
	// CheckOnly validates the package without applying it.
	CheckOnly bool
	// RunTests runs the org's tests as part of the deploy.
	RunTests bool
	// NoRollback keeps successfully applied components when others
	// fail. The default rolls everything back.
	NoRollback bool

	Timeout    time.Duration
	OnProgress func(state string)
}

// Deploy zips sourceDir and applies it to the org, blocking until the
// remote operation finishes. When the deploy fails remotely the
// returned result still carries the component diagnoses alongside the
// error.
func (c *Client) Deploy(ctx context.Context, sourceDir string, opts DeployOptions) (*DeployResult, error) {
	zipData, err := zipDir(sourceDir)
	if err != nil {
		return nil, err
	}

	asyncID, err := c.soap.deploy(ctx, zipData, opts)
	if err != nil {
		return nil, err
	}

	fetch := func(ctx context.Context) (poll.Status, error) {
		return c.soap.checkDeployStatus(ctx, asyncID)
	}

	status, err := c.wait(ctx, fetch, opts.Timeout, opts.OnProgress)
	final := asDeployResult(asyncID, status)
	if err != nil {
		return final, err
	}

	return final, nil
}

// DeployField deploys a single custom field by synthesizing a minimal
// package around it.
func (c *Client) DeployField(ctx context.Context, field CustomField, opts DeployOptions) (*DeployResult, error) {
	fieldXML, err := field.XML()
	if err != nil {
		return nil, err
	}

	manifest := NewManifest(c.soap.sess.APIVersion)
	manifest.Add("CustomField", field.Object+"."+field.Name)

	files := map[string]string{
		filepath.Join("objects", field.Object, "fields", field.Name+".field-meta.xml"): fieldXML,
	}

	return c.deploySynthetic(ctx, manifest, files, opts)
}

// DeployObject deploys a custom object together with its fields.
func (c *Client) DeployObject(ctx context.Context, obj CustomObject, opts DeployOptions) (*DeployResult, error) {
	objectXML, err := obj.XML()
	if err != nil {
		return nil, err
	}

	manifest := NewManifest(c.soap.sess.APIVersion)
	manifest.Add("CustomObject", obj.Name)

	files := map[string]string{
		filepath.Join("objects", obj.Name, obj.Name+".object-meta.xml"): objectXML,
	}

	for i := range obj.Fields {
		f := &obj.Fields[i]
		fieldXML, err := f.XML()
		if err != nil {
			return nil, err
		}
		manifest.Add("CustomField", obj.Name+"."+f.Name)
		files[filepath.Join("objects", obj.Name, "fields", f.Name+".field-meta.xml")] = fieldXML
	}

	return c.deploySynthetic(ctx, manifest, files, opts)
}

func (c *Client) deploySynthetic(ctx context.Context, manifest *Manifest, files map[string]string, opts DeployOptions) (*DeployResult, error) {
	packageXML, err := manifest.XML()
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "kinetic-deploy-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	files["package.xml"] = packageXML
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, err
		}
	}

	return c.Deploy(ctx, dir, opts)
}

// Compare diffs sourceDir against targetDir. An empty targetDir first
// retrieves the org's custom objects into a scratch directory and
// compares against that.
func (c *Client) Compare(ctx context.Context, sourceDir, targetDir string) (*Diff, error) {
	if targetDir == "" {
		scratch, err := os.MkdirTemp("", "kinetic-compare-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create scratch directory: %w", err)
		}
		defer func() { _ = os.RemoveAll(scratch) }()

		if _, err := c.Retrieve(ctx, []string{"CustomObject"}, scratch, RetrieveOptions{}); err != nil {
			return nil, err
		}
		targetDir = scratch
	}

	return CompareTrees(sourceDir, targetDir)
}

// DescribeMetadata lists the component types the org exposes.
func (c *Client) DescribeMetadata(ctx context.Context) (*DescribeResult, error) {
	return c.soap.describeMetadata(ctx)
}

func (c *Client) wait(ctx context.Context, fetch func(context.Context) (poll.Status, error), timeout time.Duration, onProgress func(string)) (poll.Status, error) {
	cfg := c.poll
	if timeout > 0 {
		cfg.Timeout = timeout
	}

	var progress func(poll.Status)
	if onProgress != nil {
		progress = func(s poll.Status) { onProgress(s.StateName()) }
	}

	return cfg.Poll(ctx, fetch, progress)
}

// asRetrieveResult converts whatever status the poller last saw, even
// on failure, so callers can report the remote diagnosis.
func asRetrieveResult(asyncID string, status poll.Status) *RetrieveResult {
	result := &RetrieveResult{ID: asyncID}
	st, ok := status.(retrieveStatus)
	if !ok {
		return result
	}

	result.Status = st.StateName()
	result.Success = st.Succeeded()
	result.FileProperties = st.fileProperties
	result.Messages = st.messages

	return result
}

func asDeployResult(asyncID string, status poll.Status) *DeployResult {
	result := &DeployResult{ID: asyncID}
	st, ok := status.(deployStatus)
	if !ok {
		return result
	}

	result.Status = st.StateName()
	result.Success = st.Succeeded()
	result.Successes = st.successes
	result.Failures = st.failures

	return result
}

