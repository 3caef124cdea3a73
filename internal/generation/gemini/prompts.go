package gemini

import (
	"bytes"
	"fmt"
	"text/template"
)

// Art style keywords for page illustrations.
const (
	StyleWatercolor = "watercolor"
	StyleVanGogh    = "van_gogh"
	StyleFantasy    = "fantasy"
	StyleCartoon    = "cartoon"
)

// stylePrompts expands a style keyword into the wording the image model expects.
var stylePrompts = map[string]string{
	StyleWatercolor: "Fairy tale watercolor style, soft lines and pastel tones, warm and cozy atmosphere, friendly for children, subtle light and shadow",
	StyleVanGogh:    "Vincent van Gogh 'Starry Night' style, swirling brushstrokes and dramatic color contrasts, deep blues and bright yellows, artistic and mystical feeling, softened for fairy tale illustration",
	StyleFantasy:    "Fantasy illustration style, vivid and bright colors, magical atmosphere, soft texture and light, child-friendly fairy tale illustration",
	StyleCartoon:    "Cartoon style, clean outlines and bright colors, cute and cheerful atmosphere, simple details, playful fairy tale illustration",
}

const storyPromptText = `You are a storybook author writing very easy English stories for two to three year old toddlers.

Turn the diary entries below into a joyful first-person story told by the child ("I").

Rules:
1. Use only very simple, basic words a toddler understands.
2. Use very short sentences. Every sentence ends with a period.
3. Add playful onomatopoeia (Splash, splash! Yum, yum!) and exclamations (Yay! Wow!).
4. Turn each diary entry into one page of one or two short story lines.
5. Open the story with a bright morning greeting and close it with a gentle good-night page.

Return JSON with a "stories" field: an array of pages, each page an array of dialogue lines.

Today's diary:
{{range .Entries}}* {{.}}
{{end}}`

const imagePromptText = `Create a whimsical, storybook-style illustration in the style of {{.Style}} based on the story: {{range .Lines}}
* {{.}}{{end}}
Depict the main human characters as they are, and transform all other characters or background figures into animals appropriate for the scene.
Show characters and key elements in dynamic motion, illustrating their actions and interactions with lively expressions and gestures.
Do not include any text, letters, numbers, captions, speech bubbles, or signs in the image.
Use vivid, magical, and charming details to enhance the fairy tale atmosphere.
Focus on composition, lighting, and perspective as if using a low-angle or wide-angle camera to make the scene more immersive.
Only one image per story.
`

const videoPromptText = `{{range .Lines}}* {{.}}
{{end}}`

var (
	storyPromptTmpl = template.Must(template.New("story").Parse(storyPromptText))
	imagePromptTmpl = template.Must(template.New("image").Parse(imagePromptText))
	videoPromptTmpl = template.Must(template.New("video").Parse(videoPromptText))
)

func renderStoryPrompt(entries []string) (string, error) {
	var buf bytes.Buffer
	err := storyPromptTmpl.Execute(&buf, struct{ Entries []string }{entries})
	if err != nil {
		return "", fmt.Errorf("render story prompt: %w", err)
	}
	return buf.String(), nil
}

func renderImagePrompt(lines []string, style string) (string, error) {
	styleWording, ok := stylePrompts[style]
	if !ok {
		styleWording = stylePrompts[StyleCartoon]
	}

	var buf bytes.Buffer
	err := imagePromptTmpl.Execute(&buf, struct {
		Style string
		Lines []string
	}{styleWording, lines})
	if err != nil {
		return "", fmt.Errorf("render image prompt: %w", err)
	}
	return buf.String(), nil
}

func renderVideoPrompt(lines []string) (string, error) {
	var buf bytes.Buffer
	if err := videoPromptTmpl.Execute(&buf, struct{ Lines []string }{lines}); err != nil {
		return "", fmt.Errorf("render video prompt: %w", err)
	}
	return buf.String(), nil
}
