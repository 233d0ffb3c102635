// Package cfn adapts AWS CloudFormation StackSets to the stackset.Client
// contract. Every SDK failure is classified into the stackset error
// taxonomy here, at the boundary; callers never see a raw SDK error.
package cfn

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"

	"github.com/stackfan/stackfan/pkg/catalog"
	"github.com/stackfan/stackfan/pkg/stackset"
)

// API is the subset of the CloudFormation client the adapter consumes.
type API interface {
	DescribeStackSet(ctx context.Context, params *cloudformation.DescribeStackSetInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackSetOutput, error)
	CreateStackSet(ctx context.Context, params *cloudformation.CreateStackSetInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackSetOutput, error)
	UpdateStackSet(ctx context.Context, params *cloudformation.UpdateStackSetInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackSetOutput, error)
	ListStackInstances(ctx context.Context, params *cloudformation.ListStackInstancesInput, optFns ...func(*cloudformation.Options)) (*cloudformation.ListStackInstancesOutput, error)
	ListStackSetOperations(ctx context.Context, params *cloudformation.ListStackSetOperationsInput, optFns ...func(*cloudformation.Options)) (*cloudformation.ListStackSetOperationsOutput, error)
	DescribeStackSetOperation(ctx context.Context, params *cloudformation.DescribeStackSetOperationInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackSetOperationOutput, error)
	CreateStackInstances(ctx context.Context, params *cloudformation.CreateStackInstancesInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackInstancesOutput, error)
	UpdateStackInstances(ctx context.Context, params *cloudformation.UpdateStackInstancesInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackInstancesOutput, error)
}

// Client implements stackset.Client on top of CloudFormation StackSets.
type Client struct {
	api API
}

// Options configures credentials resolution for New.
type Options struct {
	// Profile is the shared-config profile to use. Empty uses the default chain.
	Profile string

	// Region overrides the resolved region.
	Region string
}

// New resolves AWS configuration and returns a ready client.
func New(ctx context.Context, opts Options) (*Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, stackset.NewTransientRead("failed to resolve AWS configuration", err)
	}

	return &Client{api: cloudformation.NewFromConfig(cfg)}, nil
}

// NewFromAPI wraps an existing CloudFormation client. Used by tests.
func NewFromAPI(api API) *Client {
	return &Client{api: api}
}

// DescribeResource reports whether the stack set exists.
func (c *Client) DescribeResource(ctx context.Context, name string) error {
	_, err := c.api.DescribeStackSet(ctx, &cloudformation.DescribeStackSetInput{
		StackSetName: aws.String(name),
	})
	if err != nil {
		return classify("describe-stack-set", err)
	}
	return nil
}

// DefineResource creates the stack set. CloudFormation completes the create
// synchronously, so no operation id is returned.
func (c *Client) DefineResource(ctx context.Context, name string, def stackset.Definition) (string, error) {
	_, err := c.api.CreateStackSet(ctx, &cloudformation.CreateStackSetInput{
		StackSetName: aws.String(name),
		TemplateBody: aws.String(def.TemplateBody),
		Capabilities: capabilities(def.Capabilities),
	})
	if err != nil {
		return "", classify("create-stack-set", err)
	}
	return "", nil
}

// RedefineResource replaces the stack set's template, a versioned
// full-body replace tracked by an operation.
func (c *Client) RedefineResource(ctx context.Context, name string, def stackset.Definition) (string, error) {
	out, err := c.api.UpdateStackSet(ctx, &cloudformation.UpdateStackSetInput{
		StackSetName: aws.String(name),
		TemplateBody: aws.String(def.TemplateBody),
		Capabilities: capabilities(def.Capabilities),
	})
	if err != nil {
		return "", classify("update-stack-set", err)
	}
	return aws.ToString(out.OperationId), nil
}

// ListProvisionedTargets returns the account ids with stack instances,
// following pagination to exhaustion.
func (c *Client) ListProvisionedTargets(ctx context.Context, name string) (map[string]struct{}, error) {
	provisioned := make(map[string]struct{})

	var next *string
	for {
		out, err := c.api.ListStackInstances(ctx, &cloudformation.ListStackInstancesInput{
			StackSetName: aws.String(name),
			NextToken:    next,
		})
		if err != nil {
			return nil, classify("list-stack-instances", err)
		}

		for _, summary := range out.Summaries {
			provisioned[aws.ToString(summary.Account)] = struct{}{}
		}

		if out.NextToken == nil {
			return provisioned, nil
		}
		next = out.NextToken
	}
}

// LatestOperation returns the most recently started operation, or nil if
// the stack set has never been operated on. CloudFormation lists
// operations most-recent first.
func (c *Client) LatestOperation(ctx context.Context, name string) (*stackset.Operation, error) {
	out, err := c.api.ListStackSetOperations(ctx, &cloudformation.ListStackSetOperationsInput{
		StackSetName: aws.String(name),
		MaxResults:   aws.Int32(1),
	})
	if err != nil {
		return nil, classify("list-stack-set-operations", err)
	}

	if len(out.Summaries) == 0 {
		return nil, nil
	}

	summary := out.Summaries[0]
	return &stackset.Operation{
		ID:     aws.ToString(summary.OperationId),
		Status: mapStatus(summary.Status),
	}, nil
}

// DescribeOperation returns the operation's current status.
func (c *Client) DescribeOperation(ctx context.Context, name, operationID string) (*stackset.Operation, error) {
	out, err := c.api.DescribeStackSetOperation(ctx, &cloudformation.DescribeStackSetOperationInput{
		StackSetName: aws.String(name),
		OperationId:  aws.String(operationID),
	})
	if err != nil {
		return nil, classify("describe-stack-set-operation", err)
	}

	return &stackset.Operation{
		ID:     operationID,
		Status: mapStatus(out.StackSetOperation.Status),
	}, nil
}

// CreateInstances provisions stack instances for one target across all of
// its regions with its parameter overrides.
func (c *Client) CreateInstances(ctx context.Context, name string, target catalog.Target) (string, error) {
	out, err := c.api.CreateStackInstances(ctx, &cloudformation.CreateStackInstancesInput{
		StackSetName:       aws.String(name),
		Accounts:           []string{target.AccountID},
		Regions:            target.Regions,
		ParameterOverrides: parameters(target.Parameters),
	})
	if err != nil {
		return "", classify("create-stack-instances", err)
	}
	return aws.ToString(out.OperationId), nil
}

// UpdateInstances updates the target's stack instances, pushing parameter
// overrides only when requested.
func (c *Client) UpdateInstances(ctx context.Context, name string, target catalog.Target, includeOverrides bool) (string, error) {
	input := &cloudformation.UpdateStackInstancesInput{
		StackSetName: aws.String(name),
		Accounts:     []string{target.AccountID},
		Regions:      target.Regions,
	}
	if includeOverrides {
		input.ParameterOverrides = parameters(target.Parameters)
	}

	out, err := c.api.UpdateStackInstances(ctx, input)
	if err != nil {
		return "", classify("update-stack-instances", err)
	}
	return aws.ToString(out.OperationId), nil
}

// capabilities converts capability flags to the SDK type.
func capabilities(caps []string) []cfntypes.Capability {
	out := make([]cfntypes.Capability, 0, len(caps))
	for _, c := range caps {
		out = append(out, cfntypes.Capability(c))
	}
	return out
}

// parameters converts catalog overrides to the SDK type.
func parameters(params []catalog.Parameter) []cfntypes.Parameter {
	out := make([]cfntypes.Parameter, 0, len(params))
	for _, p := range params {
		out = append(out, cfntypes.Parameter{
			ParameterKey:   aws.String(p.Key),
			ParameterValue: aws.String(p.Value),
		})
	}
	return out
}

// mapStatus converts a CloudFormation operation status to the domain status.
func mapStatus(s cfntypes.StackSetOperationStatus) stackset.OperationStatus {
	switch s {
	case cfntypes.StackSetOperationStatusQueued:
		return stackset.OperationStatusQueued
	case cfntypes.StackSetOperationStatusRunning:
		return stackset.OperationStatusRunning
	case cfntypes.StackSetOperationStatusStopping:
		return stackset.OperationStatusStopping
	case cfntypes.StackSetOperationStatusStopped:
		return stackset.OperationStatusStopped
	case cfntypes.StackSetOperationStatusSucceeded:
		return stackset.OperationStatusSucceeded
	case cfntypes.StackSetOperationStatusFailed:
		return stackset.OperationStatusFailed
	default:
		return stackset.OperationStatusUnknown
	}
}
