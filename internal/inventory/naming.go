package inventory

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// The join between the vCenter view and the storage controller view rests
// entirely on naming conventions. All patterns live here so the convention can
// be tested and evolved in one place.
var (
	// vvolLunPathPattern extracts the naa id from a vvol backed lun path,
	// e.g. /vol/vv0_example/naa.600a098038304437.vmdk
	vvolLunPathPattern = regexp.MustCompile(`^/vol/.*/(naa\..*)\.vmdk$`)

	// vmfsLunPathPattern extracts the datastore name from a vmfs backed lun
	// path, e.g. /vol/vmfs_vc_a_0_p_ssd_bb001_001/vmfs_vc_a_0_p_ssd_bb001_001
	vmfsLunPathPattern = regexp.MustCompile(`^/vol/vmfs.*/(vmfs_.*)$`)

	// buildingBlockPattern matches datastore names carrying a building block
	// number, e.g. vmfs_vc_a_0_p_ssd_bb123_004 or vmfs_vc-a_0_p_ssd_bb123_004
	buildingBlockPattern = regexp.MustCompile(`^(?:vmfs_vc(?:-|_).*_(?:ssd|hdd))_bb(\d+)_\d+$`)

	// controllerNamePattern matches datastore names carrying the controller
	// short name directly, e.g. vmfs_vc_a_0_p_ssd_stnpca1-st123_004
	controllerNamePattern = regexp.MustCompile(`^(?:vmfs_vc(?:-|_).*_(?:ssd|hdd))_(.*)_\d+$`)
)

// datastoreNamePattern matches the datastores eligible for balancing on the
// given storage medium.
func datastoreNamePattern(medium string) *regexp.Regexp {
	return regexp.MustCompile(`^(?:vmfs_vc.*_` + regexp.QuoteMeta(medium) + `_).*`)
}

// lunMediumPattern matches lun names belonging to the given storage medium.
func lunMediumPattern(medium string) *regexp.Regexp {
	return regexp.MustCompile(`^.*_` + regexp.QuoteMeta(medium) + `_.*$`)
}

// MatchesMedium reports whether the lun belongs to the given storage medium
// class by its name.
func (l *LUN) MatchesMedium(medium string) bool {
	return lunMediumPattern(medium).MatchString(l.Name)
}

// ParseLunPath classifies a lun by its path and extracts its name. For vmfs
// luns the name equals the name of the backing datastore, which is the join
// key between the two systems. Returns ok=false for paths following neither
// convention.
func ParseLunPath(path string) (name string, kind VolumeKind, ok bool) {
	if m := vvolLunPathPattern.FindStringSubmatch(path); m != nil {
		return m[1], KindVVol, true
	}
	if m := vmfsLunPathPattern.FindStringSubmatch(path); m != nil {
		return m[1], KindVMFS, true
	}
	return "", "", false
}

// ControllerHost derives the storage controller hostname encoded in a
// datastore name, or ok=false if the name does not follow the convention.
func ControllerHost(dsName, region string) (string, bool) {
	if !strings.HasPrefix(dsName, "vmfs_vc") {
		return "", false
	}
	if m := buildingBlockPattern.FindStringSubmatch(dsName); m != nil {
		bb, err := strconv.Atoi(m[1])
		if err != nil {
			return "", false
		}
		// building block 56 is the one controller named inconsistently
		cluster := 1
		if bb == 56 {
			cluster = 0
		}
		return fmt.Sprintf("stnpca%d-bb%03d.cc.%s.cloud.sap", cluster, bb, region), true
	}
	if m := controllerNamePattern.FindStringSubmatch(dsName); m != nil {
		return fmt.Sprintf("%s.cc.%s.cloud.sap", strings.ReplaceAll(m[1], "_", "-"), region), true
	}
	return "", false
}

// ControllerHosts derives the deduplicated, sorted set of storage controller
// hostnames from all datastore names. Names not following the convention are
// skipped, which silently excludes their datastores from pool balancing.
func ControllerHosts(dsNames []string, region string) []string {
	seen := map[string]bool{}
	for _, name := range dsNames {
		host, ok := ControllerHost(name, region)
		if !ok {
			continue
		}
		seen[host] = true
	}
	hosts := make([]string, 0, len(seen))
	for host := range seen {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	return hosts
}
