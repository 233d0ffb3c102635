package cfn

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"

	"github.com/stackfan/stackfan/pkg/catalog"
	"github.com/stackfan/stackfan/pkg/stackset"
)

// fakeAPI implements API with canned responses for the calls a test exercises.
type fakeAPI struct {
	describeErr error

	createStackSetIn *cloudformation.CreateStackSetInput
	updateStackSetIn *cloudformation.UpdateStackSetInput

	instancePages []*cloudformation.ListStackInstancesOutput
	pageTokens    []*string

	operations []cfntypes.StackSetOperationSummary

	describeOpStatus cfntypes.StackSetOperationStatus

	createInstancesIn *cloudformation.CreateStackInstancesInput
	updateInstancesIn *cloudformation.UpdateStackInstancesInput
	mutateErr         error
}

func (f *fakeAPI) DescribeStackSet(ctx context.Context, params *cloudformation.DescribeStackSetInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackSetOutput, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	return &cloudformation.DescribeStackSetOutput{}, nil
}

func (f *fakeAPI) CreateStackSet(ctx context.Context, params *cloudformation.CreateStackSetInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackSetOutput, error) {
	f.createStackSetIn = params
	return &cloudformation.CreateStackSetOutput{StackSetId: aws.String("ss-1")}, nil
}

func (f *fakeAPI) UpdateStackSet(ctx context.Context, params *cloudformation.UpdateStackSetInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackSetOutput, error) {
	f.updateStackSetIn = params
	return &cloudformation.UpdateStackSetOutput{OperationId: aws.String("op-redefine")}, nil
}

func (f *fakeAPI) ListStackInstances(ctx context.Context, params *cloudformation.ListStackInstancesInput, optFns ...func(*cloudformation.Options)) (*cloudformation.ListStackInstancesOutput, error) {
	f.pageTokens = append(f.pageTokens, params.NextToken)
	page := f.instancePages[0]
	f.instancePages = f.instancePages[1:]
	return page, nil
}

func (f *fakeAPI) ListStackSetOperations(ctx context.Context, params *cloudformation.ListStackSetOperationsInput, optFns ...func(*cloudformation.Options)) (*cloudformation.ListStackSetOperationsOutput, error) {
	return &cloudformation.ListStackSetOperationsOutput{Summaries: f.operations}, nil
}

func (f *fakeAPI) DescribeStackSetOperation(ctx context.Context, params *cloudformation.DescribeStackSetOperationInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackSetOperationOutput, error) {
	return &cloudformation.DescribeStackSetOperationOutput{
		StackSetOperation: &cfntypes.StackSetOperation{
			OperationId: params.OperationId,
			Status:      f.describeOpStatus,
		},
	}, nil
}

func (f *fakeAPI) CreateStackInstances(ctx context.Context, params *cloudformation.CreateStackInstancesInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackInstancesOutput, error) {
	if f.mutateErr != nil {
		return nil, f.mutateErr
	}
	f.createInstancesIn = params
	return &cloudformation.CreateStackInstancesOutput{OperationId: aws.String("op-create")}, nil
}

func (f *fakeAPI) UpdateStackInstances(ctx context.Context, params *cloudformation.UpdateStackInstancesInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackInstancesOutput, error) {
	if f.mutateErr != nil {
		return nil, f.mutateErr
	}
	f.updateInstancesIn = params
	return &cloudformation.UpdateStackInstancesOutput{OperationId: aws.String("op-update")}, nil
}

func sampleTarget() catalog.Target {
	return catalog.Target{
		AccountID: "111111111111",
		Regions:   []string{"eu-west-1", "us-east-1"},
		Parameters: []catalog.Parameter{
			{Key: "AccountName", Value: "payments"},
		},
	}
}

func TestClient_ListProvisionedTargets_FollowsPagination(t *testing.T) {
	api := &fakeAPI{
		instancePages: []*cloudformation.ListStackInstancesOutput{
			{
				Summaries: []cfntypes.StackInstanceSummary{
					{Account: aws.String("111111111111")},
					{Account: aws.String("222222222222")},
				},
				NextToken: aws.String("page-2"),
			},
			{
				Summaries: []cfntypes.StackInstanceSummary{
					// Same account in a second region collapses to one target.
					{Account: aws.String("222222222222")},
					{Account: aws.String("333333333333")},
				},
			},
		},
	}
	client := NewFromAPI(api)

	provisioned, err := client.ListProvisionedTargets(context.Background(), "fan-out")
	if err != nil {
		t.Fatalf("ListProvisionedTargets failed: %v", err)
	}

	if len(provisioned) != 3 {
		t.Fatalf("Expected 3 provisioned accounts, got %d: %v", len(provisioned), provisioned)
	}
	for _, id := range []string{"111111111111", "222222222222", "333333333333"} {
		if _, ok := provisioned[id]; !ok {
			t.Errorf("Expected account %s in the provisioned set", id)
		}
	}

	if len(api.pageTokens) != 2 {
		t.Fatalf("Expected 2 list calls, got %d", len(api.pageTokens))
	}
	if api.pageTokens[0] != nil {
		t.Error("First list call must not carry a token")
	}
	if aws.ToString(api.pageTokens[1]) != "page-2" {
		t.Errorf("Second list call token = %q, want page-2", aws.ToString(api.pageTokens[1]))
	}
}

func TestClient_LatestOperation(t *testing.T) {
	api := &fakeAPI{
		operations: []cfntypes.StackSetOperationSummary{
			{OperationId: aws.String("op-9"), Status: cfntypes.StackSetOperationStatusRunning},
		},
	}
	client := NewFromAPI(api)

	op, err := client.LatestOperation(context.Background(), "fan-out")
	if err != nil {
		t.Fatalf("LatestOperation failed: %v", err)
	}
	if op == nil {
		t.Fatal("Expected an operation")
	}
	if op.ID != "op-9" || op.Status != stackset.OperationStatusRunning {
		t.Errorf("Unexpected operation: %+v", op)
	}
}

func TestClient_LatestOperation_NoHistory(t *testing.T) {
	client := NewFromAPI(&fakeAPI{})

	op, err := client.LatestOperation(context.Background(), "fan-out")
	if err != nil {
		t.Fatalf("LatestOperation failed: %v", err)
	}
	if op != nil {
		t.Fatalf("Expected nil for a never-operated stack set, got %+v", op)
	}
}

func TestClient_DescribeOperation_MapsStatus(t *testing.T) {
	api := &fakeAPI{describeOpStatus: cfntypes.StackSetOperationStatusSucceeded}
	client := NewFromAPI(api)

	op, err := client.DescribeOperation(context.Background(), "fan-out", "op-1")
	if err != nil {
		t.Fatalf("DescribeOperation failed: %v", err)
	}
	if op.ID != "op-1" || op.Status != stackset.OperationStatusSucceeded {
		t.Errorf("Unexpected operation: %+v", op)
	}
}

func TestClient_CreateInstances_BatchesRegionsWithOverrides(t *testing.T) {
	api := &fakeAPI{}
	client := NewFromAPI(api)

	opID, err := client.CreateInstances(context.Background(), "fan-out", sampleTarget())
	if err != nil {
		t.Fatalf("CreateInstances failed: %v", err)
	}
	if opID != "op-create" {
		t.Errorf("Operation id = %q, want op-create", opID)
	}

	in := api.createInstancesIn
	if got := in.Accounts; len(got) != 1 || got[0] != "111111111111" {
		t.Errorf("Accounts = %v, want the single target account", got)
	}
	if len(in.Regions) != 2 {
		t.Errorf("Regions = %v, want both catalog regions in one call", in.Regions)
	}
	if len(in.ParameterOverrides) != 1 || aws.ToString(in.ParameterOverrides[0].ParameterKey) != "AccountName" {
		t.Errorf("ParameterOverrides = %v, want the catalog parameters", in.ParameterOverrides)
	}
}

func TestClient_UpdateInstances_GatesOverrides(t *testing.T) {
	api := &fakeAPI{}
	client := NewFromAPI(api)

	if _, err := client.UpdateInstances(context.Background(), "fan-out", sampleTarget(), false); err != nil {
		t.Fatalf("UpdateInstances failed: %v", err)
	}
	if api.updateInstancesIn.ParameterOverrides != nil {
		t.Error("Overrides must be omitted unless explicitly requested")
	}

	if _, err := client.UpdateInstances(context.Background(), "fan-out", sampleTarget(), true); err != nil {
		t.Fatalf("UpdateInstances failed: %v", err)
	}
	if len(api.updateInstancesIn.ParameterOverrides) != 1 {
		t.Errorf("ParameterOverrides = %v, want the catalog parameters", api.updateInstancesIn.ParameterOverrides)
	}
}

func TestClient_CreateInstances_ClassifiesConflict(t *testing.T) {
	api := &fakeAPI{mutateErr: &cfntypes.OperationInProgressException{}}
	client := NewFromAPI(api)

	_, err := client.CreateInstances(context.Background(), "fan-out", sampleTarget())
	if !stackset.IsWriteConflict(err) {
		t.Fatalf("Expected write_conflict, got: %v", err)
	}
}

func TestClient_DescribeResource_NotFound(t *testing.T) {
	api := &fakeAPI{describeErr: &cfntypes.StackSetNotFoundException{}}
	client := NewFromAPI(api)

	err := client.DescribeResource(context.Background(), "fan-out")
	if !stackset.IsNotFound(err) {
		t.Fatalf("Expected not_found, got: %v", err)
	}
}
