package cms

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/xerrors"

	"github.com/aquasecurity/cms-auditor/types"
	"github.com/aquasecurity/cms-auditor/version"
)

const (
	noteDownloadLink = "The download link is not standard. Search manually !"
	noteCompare      = "Unable to compare with the reference archive. Search manually !"
)

// analyzeCore resolves the version, the latest release, the vulnerabilities
// and the alterations of the core, in that order. The first failing step
// ends the analysis with a note.
func analyzeCore(ctx context.Context, a Adapter, b *base) types.Core {
	b.log.Banner("Core analysis")

	if b.core.Version != "" {
		b.log.Info(0, "[+] %s version used : %s (set manually)", b.title, b.core.Version)
	} else {
		v, err := a.CoreVersion()
		if err != nil {
			b.coreVersionFailed(err)
			return b.core
		}
		b.core.Version = v
		b.core.VersionMajor = version.Major(v)
		b.log.Info(0, "[+] %s version used : %s", b.title, v)
	}

	last, err := a.CoreLastVersion()
	if err != nil {
		note := fmt.Sprintf("Unable to retrieve last %s version. Search manually !", b.title)
		b.log.Alert(1, "[-] %s", note)
		b.log.Debugw("Latest core version lookup failed", "err", err)
		b.core.AddNote(note)
		return b.core
	}
	b.core.LastVersion = last
	b.log.Info(0, "[+] Last CMS version: %s", last)

	vulns, err := a.CoreVulns(ctx)
	if err != nil {
		b.log.Info(1, "No entry on %s.", b.feed)
		b.log.Debugw("Vulnerability feed lookup failed", "err", err)
	} else {
		b.core.Vulns = vulns
		if len(vulns) == 0 {
			b.log.Good(1, "No CVE were found")
		}
	}

	b.log.Info(0, "[+] Checking core alteration")
	alterations, err := a.CoreAlteration(ctx)
	if err != nil {
		note := noteCompare
		if xerrors.Is(err, types.ErrUpstreamUnavailable) {
			note = fmt.Sprintf("The original %s archive has not been found. Search manually !", b.title)
		}
		b.log.Alert(0, "[-] %s", note)
		b.log.Debugw("Core alteration check failed", "err", err)
		b.core.AddNote(note)
		return b.core
	}
	b.core.Alterations = alterations
	if len(alterations) == 0 {
		b.log.Good(1, "Core is not altered")
	}
	return b.core
}

func (b *base) coreVersionFailed(err error) {
	var ambiguous *version.AmbiguousError
	switch {
	case xerrors.As(err, &ambiguous):
		for _, v := range ambiguous.Versions {
			b.log.Alert(0, "[-] Multiple %s version found. %s You should probably check by yourself manually !", b.title, v)
		}
		b.core.AddNote(fmt.Sprintf("Multiple %s versions found: %s. Search manually !", b.title, strings.Join(ambiguous.Versions, ", ")))
	default:
		note := fmt.Sprintf("%s version not found. Search manually !", b.title)
		b.log.Alert(0, "[-] %s", note)
		b.core.AddNote(note)
	}
	b.log.Debugw("Core version resolution failed", "err", err)
}

// analyzeAddons runs the addon pipeline on every addon of a type. Addons
// that fail a step are kept with the data gathered so far.
func analyzeAddons(ctx context.Context, a Adapter, b *base, addonType types.AddonType) []types.Addon {
	b.log.Banner(fmt.Sprintf("%s analysis", addonType))

	list, err := a.Addons(addonType)
	if err != nil {
		b.log.Alert(0, "[-] Unable to list the %s: %v", addonType, err)
		return []types.Addon{}
	}

	addons := make([]types.Addon, 0, len(list))
	for _, addon := range list {
		b.log.Info(0, "[+] %s", addon.Name)
		analyzeAddon(ctx, a, b, addon)
		addons = append(addons, *addon)
	}
	return addons
}

func analyzeAddon(ctx context.Context, a Adapter, b *base, addon *types.Addon) {
	v, err := a.AddonVersion(addon)
	if err != nil {
		b.addonFailed(addon, "version", err)
		return
	}
	addon.Version = v
	b.log.Default(1, "Version : %s", v)

	if err = a.AddonLastVersion(addon); err != nil {
		b.addonFailed(addon, "latest version", err)
		return
	}
	b.freshness(addon)

	vulns, err := a.AddonVulns(ctx, addon)
	if err != nil {
		b.log.Info(1, "No entry on %s.", b.feed)
		b.log.Debugw("Vulnerability feed lookup failed", "addon", addon.Name, "err", err)
	} else {
		addon.Vulns = vulns
		if len(vulns) == 0 {
			b.log.Good(1, "No CVE were found")
		}
	}

	alterations, err := a.AddonAlteration(ctx, addon)
	if err != nil {
		if !isNoted(err) {
			note := noteCompare
			if xerrors.Is(err, types.ErrUpstreamUnavailable) {
				note = noteDownloadLink
			}
			err = withNote(note, err)
		}
		b.addonFailed(addon, "alteration", err)
		return
	}
	addon.SetAlterations(alterations)
	if addon.Altered == types.StateAltered {
		b.log.Alert(1, "Different from sources : %s", addon.Altered)
	} else {
		b.log.Good(1, "Different from sources : %s", addon.Altered)
	}
}

func (b *base) addonFailed(addon *types.Addon, step string, err error) {
	note := fmt.Sprintf("Unable to resolve the addon %s. Search manually !", step)
	var ne *noteError
	if xerrors.As(err, &ne) {
		note = ne.note
	}
	addon.Notes = note
	b.log.Alert(1, "[-] %s", note)
	b.log.Debugw("Addon step failed", "addon", addon.Name, "step", step, "err", err)
}

func isNoted(err error) bool {
	var ne *noteError
	return xerrors.As(err, &ne)
}

func (b *base) freshness(addon *types.Addon) {
	if addon.LastVersion == types.NotFound {
		return
	}
	if addon.LastVersion == addon.Version {
		b.log.Good(1, "Up to date !")
		return
	}
	b.log.Alert(1, "Outdated, last version: %s (%s)", addon.LastVersion, addon.LastReleaseDate)
	b.log.Default(1, "Check : %s", addon.Link)
}
