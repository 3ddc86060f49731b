package notify

import (
	"fmt"
	"sort"
	"time"
)

const dateLayout = "02/01/2006"

// OwnedItem is a resource line attributed to the user who created it.
type OwnedItem struct {
	Name  string
	Owner string
}

// Formatter builds the digests posted to Slack. Mentions maps platform
// logins to Slack member IDs so owners get pinged on the digests grouped by
// owner; logins without a mapping fall back to the bare login. GuidelineURL,
// when set, is appended to every to-be-archived pretext.
type Formatter struct {
	Mentions     map[string]string
	GuidelineURL string
}

func (f *Formatter) mention(owner string) string {
	if id, ok := f.Mentions[owner]; ok {
		return fmt.Sprintf("<@%s>", id)
	}
	return owner
}

func (f *Formatter) withGuideline(pretext string) string {
	if f.GuidelineURL == "" {
		return pretext
	}
	return pretext + fmt.Sprintf("\n_Archiving guidelines: %s_", f.GuidelineURL)
}

func seal(pretext string, lines []string) Digest {
	if len(lines) == 0 {
		return Digest{}
	}
	return Digest{Pretext: pretext, Lines: append(lines, Sentinel)}
}

// TierADigest lists the Tier-A projects pending archival, sorted by name.
func (f *Formatter) TierADigest(today, archiveDate time.Time, names []string) Digest {
	pretext := fmt.Sprintf(
		":bangbang: %s *002 projects to be archived:*"+
			"\n_Please tag `no-archive` or `never-archive` in project settings_"+
			"\n*Archive date: %s*",
		today.Format(dateLayout), archiveDate.Format(dateLayout))

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return seal(f.withGuideline(pretext), sorted)
}

// TierBDigest lists the Tier-B projects pending archival, grouped by owner.
// Owners are sorted, each group opens with the owner's mention, and project
// names are sorted within a group.
func (f *Formatter) TierBDigest(today, archiveDate time.Time, items []OwnedItem) Digest {
	pretext := fmt.Sprintf(
		":bangbang: %s *003 projects to be archived:*"+
			"\n_Please tag `no-archive` or `never-archive` in project settings_"+
			"\n*Archive date: %s*",
		today.Format(dateLayout), archiveDate.Format(dateLayout))

	return seal(f.withGuideline(pretext), f.groupByOwner(items))
}

func (f *Formatter) groupByOwner(items []OwnedItem) []string {
	byOwner := make(map[string][]string)
	for _, item := range items {
		byOwner[item.Owner] = append(byOwner[item.Owner], item.Name)
	}

	owners := make([]string, 0, len(byOwner))
	for owner := range byOwner {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	var lines []string
	for _, owner := range owners {
		names := byOwner[owner]
		sort.Strings(names)
		lines = append(lines, f.mention(owner))
		lines = append(lines, names...)
	}
	return lines
}

// DirectoryDigest lists the staging directories pending archival.
func (f *Formatter) DirectoryDigest(today, archiveDate time.Time, stagingProject string, dirs []string) Digest {
	pretext := fmt.Sprintf(
		":bangbang: %s *Directories in `%s` to be archived:*"+
			"\n_Please tag `no-archive` or `never-archive` on any file within the directory_"+
			"\n*Archive date: %s*",
		today.Format(dateLayout), stagingProject, archiveDate.Format(dateLayout))

	sorted := append([]string(nil), dirs...)
	sort.Strings(sorted)
	return seal(f.withGuideline(pretext), sorted)
}

// PrecisionDigest lists the precision folders pending archival.
func (f *Formatter) PrecisionDigest(today, archiveDate time.Time, folders []string) Digest {
	pretext := fmt.Sprintf(
		":bangbang: %s *Precision folders to be archived:*"+
			"\n_Please tag `no-archive` or `never-archive` on any file within the folder_"+
			"\n*Archive date: %s*",
		today.Format(dateLayout), archiveDate.Format(dateLayout))

	sorted := append([]string(nil), folders...)
	sort.Strings(sorted)
	return seal(f.withGuideline(pretext), sorted)
}

// SpecialNoticeDigest lists resources whose stale no-archive opt-out was
// overridden and which will be archived unless re-tagged.
func (f *Formatter) SpecialNoticeDigest(today, archiveDate time.Time, names []string) Digest {
	pretext := fmt.Sprintf(
		":warning: %s *Inactive project or directory to be archived*"+
			"\n_unless re-tagged `no-archive`_"+
			"\n*Archive date: %s*",
		today.Format(dateLayout), archiveDate.Format(dateLayout))

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return seal(f.withGuideline(pretext), sorted)
}

// NoArchiveDigest lists resources currently opted out with no-archive.
// Informational only.
func (f *Formatter) NoArchiveDigest(today time.Time, names []string) Digest {
	pretext := fmt.Sprintf(
		":male-detective: %s *Projects or directories tagged with `no-archive`:*"+
			"\n_just for your information_",
		today.Format(dateLayout))

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return seal(pretext, sorted)
}

// NeverArchiveDigest lists resources permanently excluded with
// never-archive. Informational only.
func (f *Formatter) NeverArchiveDigest(today time.Time, names []string) Digest {
	pretext := fmt.Sprintf(
		":female-detective: %s *Projects or directories tagged with `never-archive`:*"+
			"\n_just for your information_",
		today.Format(dateLayout))

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return seal(pretext, sorted)
}

// ArchivedDigest summarizes what the commit phase actually archived.
func (f *Formatter) ArchivedDigest(names []string) Digest {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return seal(":closed_book: *Projects or directories archived:*", sorted)
}

// Countdown is the notice posted on non-run dates while work is pending.
// The gap is counted in calendar days so that a DST transition inside the
// window does not shave a day off.
func Countdown(today, nextRun time.Time) string {
	days := 0
	for d := today; d.Before(nextRun); d = d.AddDate(0, 0, 1) {
		days++
	}
	return fmt.Sprintf("automated-archiving: %d day(s) till archiving on %s",
		days, nextRun.Format(dateLayout))
}

// AuthFailure is the alert posted when the platform rejects the engine's
// credentials; the run aborts after sending it.
func AuthFailure(err error) string {
	return fmt.Sprintf("automated-archiving: Error with platform token!\n`%v`", err)
}

// BundleReport is the introductory comment for the stale-bundle snippet.
func BundleReport(months int, periodStart, periodEnd string) string {
	return fmt.Sprintf(
		"automated-bundle-notify: `tar.gz` not modified in the last %d month(s)\n"+
			"Period: %s - %s\n_Please find the complete list of file IDs below:_",
		months, periodStart, periodEnd)
}
