package awsidentity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
)

const (
	// Inline policy attached to permission-set roles by Identity Center.
	inlinePolicyName = "AwsSSOInlinePolicy"

	passRoleAction    = "iam:PassRole"
	passedToCondition = "iam:PassedToService"
	deploymentService = "cloudformation.amazonaws.com"
)

var deploymentRoleARNRegex = regexp.MustCompile(`arn:aws:iam::[0-9]*:role/[a-zA-Z0-9\-_]+`)

// stringList accepts both a JSON string and a JSON array of strings;
// IAM policy documents use either form for Action, Resource and
// condition values.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = stringList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

func (s stringList) contains(v string) bool {
	for _, item := range s {
		if item == v {
			return true
		}
	}
	return false
}

type policyStatement struct {
	Effect    string                           `json:"Effect"`
	Action    stringList                       `json:"Action"`
	Resource  stringList                       `json:"Resource"`
	Condition map[string]map[string]stringList `json:"Condition"`
}

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

// decodePolicyDocument percent-decodes an IAM policy document as
// returned by GetRolePolicy, falling back to form decoding, then to the
// raw text, when decoding fails.
func decodePolicyDocument(doc string) string {
	if decoded, err := url.PathUnescape(doc); err == nil {
		return decoded
	}
	if decoded, err := url.QueryUnescape(doc); err == nil {
		return decoded
	}
	return doc
}

// fetchInlinePolicy downloads and decodes a role's inline policy.
func fetchInlinePolicy(ctx context.Context, cfg aws.Config, roleName string) (string, error) {
	client := iam.NewFromConfig(cfg)

	resp, err := client.GetRolePolicy(ctx, &iam.GetRolePolicyInput{
		RoleName:   aws.String(roleName),
		PolicyName: aws.String(inlinePolicyName),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "NoSuchEntity":
				return "", fmt.Errorf("role %q or policy %q not found: %w", roleName, inlinePolicyName, err)
			case "AccessDenied":
				return "", fmt.Errorf("insufficient permissions to read policy %q of role %q: %w", inlinePolicyName, roleName, err)
			}
		}
		return "", fmt.Errorf("failed to get role policy for %q: %w", roleName, err)
	}

	return decodePolicyDocument(aws.ToString(resp.PolicyDocument)), nil
}

// DiscoverDeploymentRole identifies the deployment service role by
// inspecting the caller's own permission-set policy: it resolves the
// assumed role via STS GetCallerIdentity, downloads that role's inline
// policy, and returns the role name from the PassRole statement whose
// condition restricts passing to the CloudFormation service.
func (ic *IdentityCenter) DiscoverDeploymentRole(ctx context.Context) (string, error) {
	logger := getLogger(ic.config)

	cred, err := ic.defaultCredentialSnapshot()
	if err != nil {
		return "", err
	}
	cfg, err := ic.awsConfigWithCredential(ctx, cred)
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}

	stsClient := sts.NewFromConfig(cfg)
	identity, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to get caller identity: %w", err)
	}
	arn := aws.ToString(identity.Arn)
	if arn == "" {
		return "", fmt.Errorf("no ARN in caller identity")
	}

	// arn:aws:sts::123456789012:assumed-role/RoleName/session
	parts := strings.Split(arn, "/")
	if len(parts) < 2 {
		return "", fmt.Errorf("cannot extract role name from caller identity ARN")
	}
	roleName := parts[1]
	logger.Info("Resolved current permission-set role", slog.String("role_name", roleName))

	policy, err := fetchInlinePolicy(ctx, cfg, roleName)
	if err != nil {
		return "", err
	}

	deploymentRole, err := findDeploymentRoleInPolicy(policy)
	if err != nil {
		return "", &PolicyParseError{RoleName: roleName, Message: err.Error()}
	}

	logger.Info("Discovered deployment role", slog.String("role_name", deploymentRole))
	return deploymentRole, nil
}

// findDeploymentRoleInPolicy scans a decoded policy document for a
// PassRole statement conditioned on the CloudFormation service and
// returns the role name from its resource.
func findDeploymentRoleInPolicy(policy string) (string, error) {
	var doc policyDocument
	if err := json.Unmarshal([]byte(policy), &doc); err != nil {
		return "", fmt.Errorf("failed to parse policy JSON: %v", err)
	}

	for _, stmt := range doc.Statement {
		if !stmt.Action.contains(passRoleAction) {
			continue
		}
		equals, ok := stmt.Condition["StringEquals"]
		if !ok || !equals[passedToCondition].contains(deploymentService) {
			continue
		}
		if len(stmt.Resource) == 0 {
			continue
		}
		roleARN := stmt.Resource[0]
		idx := strings.LastIndex(roleARN, "/")
		if idx < 0 || idx == len(roleARN)-1 {
			return "", fmt.Errorf("invalid role ARN in PassRole resource: %s", roleARN)
		}
		return roleARN[idx+1:], nil
	}

	return "", fmt.Errorf("no PassRole statement conditioned on %s found", deploymentService)
}

// ExtractInfrastructureInfo downloads the named role's inline policy and
// extracts the storage-table ARN matching tablePattern plus every
// deployment role ARN mentioned in it. The result replaces any previous
// extraction on the coordinator.
func (ic *IdentityCenter) ExtractInfrastructureInfo(ctx context.Context, roleName, tablePattern string) (*InfrastructureInfo, error) {
	logger := getLogger(ic.config)

	cred, err := ic.defaultCredentialSnapshot()
	if err != nil {
		return nil, err
	}
	cfg, err := ic.awsConfigWithCredential(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	policy, err := fetchInlinePolicy(ctx, cfg, roleName)
	if err != nil {
		return nil, err
	}

	info, err := extractInfrastructureFromPolicy(policy, tablePattern)
	if err != nil {
		return nil, &PolicyParseError{RoleName: roleName, Message: err.Error()}
	}
	info.SourceRole = roleName

	ic.mu.Lock()
	ic.infrastructureInfo = info
	ic.mu.Unlock()

	logger.Info("Extracted infrastructure info",
		slog.String("table_name", info.TableName),
		slog.String("table_region", info.TableRegion),
		slog.Int("deployment_roles", len(info.DeploymentRoleARNs)))
	return info, nil
}

// extractInfrastructureFromPolicy applies the two pattern matches to a
// decoded policy document.
func extractInfrastructureFromPolicy(policy, tablePattern string) (*InfrastructureInfo, error) {
	tableRegex, err := regexp.Compile(`arn:aws:dynamodb:[^:"]*:[^:"]*:table/` + tablePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid table pattern: %v", err)
	}

	tableARN := tableRegex.FindString(policy)
	if tableARN == "" {
		return nil, fmt.Errorf("no matching table ARN found")
	}

	// arn:aws:dynamodb:region:account:table/name
	parts := strings.Split(tableARN, ":")
	if len(parts) != 6 {
		return nil, fmt.Errorf("invalid table ARN format: %s", tableARN)
	}
	tableName, ok := strings.CutPrefix(parts[5], "table/")
	if !ok {
		return nil, fmt.Errorf("invalid table ARN resource segment: %s", parts[5])
	}

	return &InfrastructureInfo{
		TableARN:           tableARN,
		TableRegion:        parts[3],
		TableAccount:       parts[4],
		TableName:          tableName,
		DeploymentRoleARNs: deploymentRoleARNRegex.FindAllString(policy, -1),
	}, nil
}

// autoExtractInfrastructureInfo runs the full discovery chain after a
// successful device authorization: default-role credentials, deployment
// role discovery, then infrastructure extraction using the default role
// name as the table pattern. Every step is best-effort.
func (ic *IdentityCenter) autoExtractInfrastructureInfo(ctx context.Context) {
	logger := getLogger(ic.config)

	if _, err := ic.GetDefaultRoleCredentials(ctx); err != nil {
		logger.Warn("Skipping infrastructure extraction, no default role credentials",
			slog.Any("error", err))
		return
	}

	deploymentRole, err := ic.DiscoverDeploymentRole(ctx)
	if err != nil {
		logger.Warn("Failed to discover deployment role", slog.Any("error", err))
		return
	}

	ic.mu.Lock()
	ic.deploymentRoleName = deploymentRole
	pattern := ic.defaultRoleName
	ic.mu.Unlock()

	if _, err := ic.ExtractInfrastructureInfo(ctx, deploymentRole, pattern); err != nil {
		logger.Warn("Failed to extract infrastructure info",
			slog.String("role_name", deploymentRole),
			slog.Any("error", err))
	}
}
