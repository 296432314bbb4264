package naming

import "fmt"

func Network(stack string) string {
	return stack
}

func Firewall(stack string) string {
	return stack
}

// ExecutionRole names the SSH key that stands in for the instance role.
func ExecutionRole(stack string) string {
	return fmt.Sprintf("%s-execution-role", stack)
}

func Volume(stack string) string {
	return fmt.Sprintf("%s-data", stack)
}

func Server(stack string, index int) string {
	return fmt.Sprintf("%s-node-%d", stack, index)
}

func LoadBalancer(stack string) string {
	return fmt.Sprintf("%s-edge", stack)
}

func Certificate(stack string) string {
	return fmt.Sprintf("%s-tls", stack)
}

// LogGroup returns the log group for one output stream of a client.
func LogGroup(stack, network, client, stream string) string {
	return fmt.Sprintf("%s-%s-%s--%s-log", stack, network, client, stream)
}

// AssetPolicySid names the bucket policy statement granting role read access.
func AssetPolicySid(stack string) string {
	return fmt.Sprintf("%sExecutionRoleAssetRead", stack)
}

// LogPolicySid names the bucket policy statement granting role log uploads.
func LogPolicySid(stack string) string {
	return fmt.Sprintf("%sExecutionRoleLogWrite", stack)
}
