package youtube

import (
	"regexp"

	"catalog_ingest/internal/domain"
)

var (
	instagramLink = regexp.MustCompile(`(?i)https?://(?:www\.)?instagram\.com\S+`)
	twitterLink   = regexp.MustCompile(`(?i)https?://(?:www\.)?twitter\.com\S+`)
	facebookLink  = regexp.MustCompile(`(?i)https?://(?:www\.)?facebook\.com\S+`)

	anyLink    = regexp.MustCompile(`(?i)https?://(\S+)`)
	socialHost = regexp.MustCompile(`(?i)^(?:www\.)?(?:instagram|twitter|facebook)\.com`)
)

// ExtractSocialLinks picks the first link per known social domain out of a
// channel description, plus the first link on any other domain as the website.
func ExtractSocialLinks(description string) domain.SocialLinks {
	return domain.SocialLinks{
		Instagram: firstMatch(instagramLink, description),
		Twitter:   firstMatch(twitterLink, description),
		Facebook:  firstMatch(facebookLink, description),
		Website:   websiteLink(description),
	}
}

func firstMatch(re *regexp.Regexp, s string) *string {
	m := re.FindString(s)
	if m == "" {
		return nil
	}
	return &m
}

func websiteLink(s string) *string {
	for _, m := range anyLink.FindAllStringSubmatch(s, -1) {
		if socialHost.MatchString(m[1]) {
			continue
		}
		link := m[0]
		return &link
	}
	return nil
}
