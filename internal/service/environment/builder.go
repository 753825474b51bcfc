package environment

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/config"
	domain "github.com/dino2gnt/opennms-shellexecutor-plugin/internal/domain/alarm"
	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/logger"
)

// Environment keys exported to commands.
const (
	KeyClient         = "client"
	KeyClientURL      = "clientUrl"
	KeyCommand        = "command"
	KeyReductionKey   = "reductionKey"
	KeyAction         = "action"
	KeyID             = "id"
	KeyLogMessage     = "logmessage"
	KeySeverity       = "severity"
	KeySource         = "source"
	KeyNodeLabel      = "nodeLabel"
	KeyNodeAsset      = "nodeAsset"
	KeyNodeMetaData   = "nodeMetaData"
	KeyNodeCategories = "node_categories"
	KeyNodeIPAddress  = "node_ipAddress"
)

// unknownSource is exported as "source" for alarms without a labelled node.
const unknownSource = "unknown"

// Builder projects alarms into command environments for one executor instance.
type Builder struct {
	client  config.Client
	command string
}

// NewBuilder returns a builder exporting the given client metadata and command.
func NewBuilder(client config.Client, command string) *Builder {
	return &Builder{
		client:  client,
		command: command,
	}
}

// Build classifies the alarm and returns its full environment: client metadata first,
// then the alarm payload. The result depends only on the alarm snapshot.
func (b *Builder) Build(ctx context.Context, a *domain.Alarm) (domain.Action, *Environment) {
	env := New()
	env.Add(KeyClient, b.client.Name)
	env.Add(KeyClientURL, b.alarmURL(a.ID))
	env.Add(KeyCommand, b.command)

	action := appendPayload(ctx, env, a)

	return action, env
}

// Deleted returns the minimal environment of a deleted alarm.
func Deleted(reductionKey string) *Environment {
	return FromPairs(
		KeyAction, domain.ActionDeleted.String(),
		KeyReductionKey, reductionKey,
	)
}

// Payload returns the alarm-derived part of the environment without client metadata.
func Payload(ctx context.Context, a *domain.Alarm) (domain.Action, *Environment) {
	env := New()
	action := appendPayload(ctx, env, a)

	return action, env
}

// alarmURL renders the alarm details link. Patterns without a verb are used as-is.
func (b *Builder) alarmURL(id int) string {
	if !strings.Contains(b.client.AlarmURLPattern, "%") {
		return b.client.AlarmURLPattern
	}

	return fmt.Sprintf(b.client.AlarmURLPattern, id)
}

// appendPayload writes derived keys first and event parameters last.
// Every write is first-write-wins, so an event parameter never replaces a derived key.
func appendPayload(ctx context.Context, env *Environment, a *domain.Alarm) domain.Action {
	action := domain.Classify(a)

	env.Add(KeyReductionKey, a.ReductionKey)
	env.Add(KeyAction, action.String())
	env.Add(KeyID, strconv.Itoa(a.ID))
	env.Add(KeyLogMessage, strings.TrimSpace(a.LogMessage))
	env.Add(KeySeverity, a.Severity.String())

	appendNode(env, a.Node)

	if a.LastEvent == nil {
		return action
	}

	for _, p := range a.LastEvent.Parameters {
		if !env.Add(p.Name, p.Value) {
			logger.DebugKV(ctx, "Event parameter shadowed by derived key",
				"reduction_key", a.ReductionKey, "parameter", p.Name)
		}
	}

	return action
}

// appendNode writes "source" and the node-derived keys.
func appendNode(env *Environment, node *domain.Node) {
	if node == nil {
		env.Add(KeySource, unknownSource)

		return
	}

	source := node.Label
	if source == "" {
		source = unknownSource
	}

	env.Add(KeySource, source)

	if node.Label != "" {
		env.Add(KeyNodeLabel, node.Label)
	}

	if node.AssetRecord != "" {
		env.Add(KeyNodeAsset, node.AssetRecord)
	}

	if node.MetaData != "" {
		env.Add(KeyNodeMetaData, node.MetaData)
	}

	if node.Categories != nil {
		env.Add(KeyNodeCategories, "["+strings.Join(node.Categories, ", ")+"]")
	}

	if len(node.IPAddresses) > 0 && node.IPAddresses[0] != "" {
		env.Add(KeyNodeIPAddress, node.IPAddresses[0])
	}
}
