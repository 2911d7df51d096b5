package agent

import (
	"encoding/json"
	"fmt"

	"github.com/agentcore-go/agentcore/internal/skills"
	"github.com/agentcore-go/agentcore/pkg/engine"
)

// executeSkillTool implements §4.6.2 step 9: look up the named skill,
// substitute $ARGUMENTS, and attach a skillResult so the caller inserts a
// SkillSystem message ahead of the ordinary tool-result. input is the
// already-gated argument payload (post PreToolUse/permission-manager
// rewrites from steps 4-7), not the raw tool-call arguments.
func (d *Driver) executeSkillTool(input json.RawMessage) (content string, isError bool, skillResult *engine.SkillSystem) {
	if d.cfg.SkillRegistry == nil {
		return `{"loaded":false,"error":"no skill registry configured"}`, true, nil
	}
	var in skillInput
	if err := json.Unmarshal(input, &in); err != nil {
		return fmt.Sprintf("Error: Invalid JSON arguments - %s", err), true, nil
	}
	skill, ok := d.cfg.SkillRegistry.Get(in.Name)
	if !ok {
		return fmt.Sprintf(`{"loaded":false,"error":"unknown skill %q"}`, in.Name), true, nil
	}

	expanded := skills.Expand(skill.Content, in.Arguments)

	// The skill's allow-list scope stays installed for the remainder of
	// this run (it gates every subsequent tool call in the skill's
	// continuation) and is cleared when the run terminates, see run()'s
	// exit paths.
	if skill.AllowedTools != nil {
		d.permMgr.SetSkillAllowList(skill.AllowedTools)
	}

	return fmt.Sprintf(`{"loaded":true,"skill":%q}`, skill.Name), false, &engine.SkillSystem{Name: skill.Name, Content: expanded}
}
