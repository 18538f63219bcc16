// Package sdparams parses the "parameters" text that Stable Diffusion web
// front-ends embed in generated PNGs.
//
// The text has three sections: the positive prompt, a line starting with
// "Negative prompt:" and a line starting with "Steps:" followed by
// comma-separated key/value fields. Prompts are split into tags; a tag
// written as "(name:1.2)" carries a weight.
package sdparams
