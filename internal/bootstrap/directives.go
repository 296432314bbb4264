package bootstrap

import (
	"fmt"
	"math"
	"path"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"
)

func guard(marker string) Directive {
	q := shellescape.Quote(marker)
	return Directive{
		Stage: StageGuard,
		Name:  "run-once guard",
		Command: strings.Join([]string{
			fmt.Sprintf("if [ -e %s ]; then", q),
			`  echo "nodeforge: already bootstrapped, nothing to do"`,
			"  exit 0",
			"fi",
			fmt.Sprintf("mkdir -p %s", shellescape.Quote(path.Dir(marker))),
			fmt.Sprintf("date -u +%%Y-%%m-%%dT%%H:%%M:%%SZ > %s", q),
			// A failed run releases the claim so the script can be run again.
			fmt.Sprintf(`trap 'rc=$?; [ "$rc" -eq 0 ] || rm -f %s' EXIT`, q),
		}, "\n"),
		Produces: []string{marker},
	}
}

// storageCredentials writes the object-storage key pair to a root-only
// env file and exports it to the rest of the script.
func storageCredentials(s StorageAccess) Directive {
	q := shellescape.Quote(s.EnvPath)
	return Directive{
		Stage: StageCredentials,
		Name:  "storage credentials",
		Command: strings.Join([]string{
			fmt.Sprintf("install -d -m 0755 %s", shellescape.Quote(path.Dir(s.EnvPath))),
			fmt.Sprintf("(umask 077 && printf '%%s=%%q\\n' %s %s %s %s > %s)",
				AccessKeyEnv, shellescape.Quote(s.AccessKey),
				SecretKeyEnv, secretArg(s.SecretKey), q),
			fmt.Sprintf("chmod 0600 %s", q),
			"set -a",
			fmt.Sprintf(". %s", q),
			"set +a",
		}, "\n"),
		Produces: []string{s.EnvPath},
	}
}

// secretArg leaves the placeholder bare so its substitute can carry its
// own quoting, see Substitutions.
func secretArg(secret string) string {
	if secret == SecretKeyPlaceholder {
		return secret
	}
	return shellescape.Quote(secret)
}

// download fetches f with a SigV4-signed request. The bucket is private,
// so anonymous reads fail.
func download(stage Stage, f Fetch, s StorageAccess) Directive {
	return Directive{
		Stage: stage,
		Name:  "download " + f.Name,
		Command: fmt.Sprintf("mkdir -p %s\ncurl -fsSL --retry 5 --aws-sigv4 %s --user %s -o %s %s",
			shellescape.Quote(path.Dir(f.LocalPath)),
			shellescape.Quote("aws:amz:"+s.Region+":s3"),
			fmt.Sprintf(`"${%s}:${%s}"`, AccessKeyEnv, SecretKeyEnv),
			shellescape.Quote(f.LocalPath),
			shellescape.Quote(f.URL)),
		Produces: []string{f.LocalPath},
		Consumes: []string{s.EnvPath},
	}
}

// agent starts vector with the storage key pair in its environment; the
// log sinks sign their uploads with it.
func agent(configPath, envPath string) Directive {
	q := shellescape.Quote(configPath)
	return Directive{
		Stage: StageAgent,
		Name:  "start metrics agent",
		Command: strings.Join([]string{
			"if pgrep -x vector >/dev/null; then",
			"  pkill -HUP -x vector",
			"else",
			fmt.Sprintf("  nohup vector --config %s >> /var/log/vector.log 2>&1 &", q),
			"fi",
		}, "\n"),
		Consumes: []string{configPath, envPath},
	}
}

// jwtSecret is readable by the client user only.
func jwtSecret(secretPath, user string) Directive {
	q := shellescape.Quote(secretPath)
	return Directive{
		Stage: StageSecret,
		Name:  "shared secret",
		Command: strings.Join([]string{
			fmt.Sprintf("mkdir -p %s", shellescape.Quote(path.Dir(secretPath))),
			fmt.Sprintf("if [ ! -s %s ]; then", q),
			fmt.Sprintf("  openssl rand -hex 32 | tr -d '\\n' > %s", q),
			"fi",
			fmt.Sprintf("chown %s:%s %s", shellescape.Quote(user), shellescape.Quote(user), q),
			fmt.Sprintf("chmod 0600 %s", q),
		}, "\n"),
		Produces: []string{secretPath},
	}
}

// asUser runs cmd in the user's login shell, backgrounded, with the
// client's stdout and stderr appended to its log files.
func asUser(user, home, client, cmd string) string {
	inner := fmt.Sprintf("cd %s && %s 2>> %s 1>> %s &",
		shellescape.Quote(home),
		cmd,
		shellescape.Quote(LogPath(home, client, "stderr")),
		shellescape.Quote(LogPath(home, client, "stdout")))
	return fmt.Sprintf("runuser -l %s -c %s", shellescape.Quote(user), shellescape.Quote(inner))
}

// ExecutionCommand is the execution client invocation.
func ExecutionCommand(network, configPath, secretPath string) string {
	return shellescape.QuoteCommand([]string{
		ExecutionClient,
		"--" + network,
		"--config", configPath,
		"--http",
		"--authrpc.jwtsecret", secretPath,
	})
}

// ConsensusCommand is the consensus client invocation.
func ConsensusCommand(network, secretPath string) string {
	return shellescape.QuoteCommand([]string{
		ConsensusClient, "bn",
		"--network", network,
		"--jwt-secrets", secretPath,
		"--execution-endpoints", ExecutionAuthURL,
		"--eth1-endpoints", ExecutionRPCURL,
		"--eth1",
	})
}

func execution(in Input) Directive {
	return Directive{
		Stage:    StageExecution,
		Name:     "start " + ExecutionClient,
		Command:  asUser(in.User, in.Home, ExecutionClient, ExecutionCommand(in.Network, in.NodeConfigPath, in.JWTSecretPath)),
		Consumes: []string{in.NodeConfigPath, in.JWTSecretPath},
	}
}

const readinessRequest = `{"jsonrpc":"2.0","method":"web3_clientVersion","params":[],"id":1}`

func readiness(timeout, interval time.Duration) Directive {
	secs := int(math.Ceil(timeout.Seconds()))
	poll := int(math.Ceil(interval.Seconds()))
	return Directive{
		Stage: StageReadiness,
		Name:  "wait for " + ExecutionClient,
		Command: strings.Join([]string{
			fmt.Sprintf("deadline=$((SECONDS + %d))", secs),
			fmt.Sprintf("until curl -fsS -X POST -H 'Content-Type: application/json' --data %s %s >/dev/null 2>&1; do",
				shellescape.Quote(readinessRequest), ExecutionRPCURL),
			`  if [ "$SECONDS" -ge "$deadline" ]; then`,
			fmt.Sprintf(`    echo "nodeforge: %s did not answer within %ds" >&2`, ExecutionClient, secs),
			"    exit 1",
			"  fi",
			fmt.Sprintf("  sleep %d", poll),
			"done",
		}, "\n"),
	}
}

func consensus(in Input) Directive {
	return Directive{
		Stage:    StageConsensus,
		Name:     "start " + ConsensusClient,
		Command:  asUser(in.User, in.Home, ConsensusClient, ConsensusCommand(in.Network, in.JWTSecretPath)),
		Consumes: []string{in.JWTSecretPath},
	}
}
