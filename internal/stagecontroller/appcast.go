package stagecontroller

import (
	"github.com/atomikpanda/Sparkle/internal/protocol"
)

// handleAppcastItem implements spec.md §4.8: the updater forwards an
// appcast item's data so the agent can broadcast discovery of the
// pending update. The daemon does not interpret the item beyond
// re-wrapping it alongside the can_install_silently flag stage 1
// established.
func (c *Controller) handleAppcastItem(payload []byte) {
	item, err := protocol.DecodeAppcastItem(payload)
	if err != nil {
		c.logger.Warn("decoding appcast item failed, ignoring", "error", err)
		return
	}

	c.mu.Lock()
	canInstallSilently := c.canInstallSilently
	c.mu.Unlock()

	encoded, err := protocol.EncodeInstallationInfo(protocol.InstallationInfo{
		Item:               item,
		CanInstallSilently: canInstallSilently,
	})
	if err != nil {
		c.logger.Warn("encoding installation info failed, ignoring appcast item", "error", err)
		return
	}

	if err := c.agentLink.RegisterInstallationInfo(encoded); err != nil {
		c.logger.Warn("publishing installation info to agent failed", "error", err)
	}
}
