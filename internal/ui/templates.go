package ui

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/me/labflow/internal/labutil"
	"github.com/me/labflow/pkg/model"
)

// Template functions available in all templates.
var templateFuncs = template.FuncMap{
	"formatDate": labutil.FormatDate,
	"formatDatePtr": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return labutil.FormatDate(*t)
	},
	"truncate":      labutil.TruncateText,
	"formatMinutes": labutil.FormatMinutes,
	"statusBadge": func(status string) string {
		switch status {
		case string(model.RunInProgress), string(model.StatusDraft):
			return "bg-indigo-100 text-indigo-800"
		case string(model.RunCompleted), string(model.StatusPublished), string(model.ProjectActive):
			return "bg-green-100 text-green-800"
		case string(model.RunAbandoned), string(model.StatusArchived):
			return "bg-gray-100 text-gray-700"
		default:
			return "bg-gray-100 text-gray-700"
		}
	},
	"statusLabel": func(status string) string {
		switch status {
		case string(model.RunInProgress):
			return "In Progress"
		case string(model.RunCompleted):
			return "Completed"
		case string(model.RunAbandoned):
			return "Abandoned"
		}
		return strings.ToUpper(status[:min(1, len(status))]) + status[min(1, len(status)):]
	},
	"formatQuantity": func(v float64) string {
		return strconv.FormatFloat(v, 'f', -1, 64)
	},
	"formatFloatPtr": func(v *float64) string {
		if v == nil {
			return ""
		}
		return strconv.FormatFloat(*v, 'f', -1, 64)
	},
	"valueString": func(v any) string {
		if v == nil {
			return ""
		}
		if f, ok := v.(float64); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return fmt.Sprint(v)
	},
	"lookup": func(m map[string]any, key string) any {
		return m[key]
	},
	"isTrue": func(v any) bool {
		b, _ := v.(bool)
		return b
	},
	"dict": func(pairs ...any) (map[string]any, error) {
		if len(pairs)%2 != 0 {
			return nil, fmt.Errorf("dict: odd number of arguments")
		}
		m := make(map[string]any, len(pairs)/2)
		for i := 0; i < len(pairs); i += 2 {
			key, ok := pairs[i].(string)
			if !ok {
				return nil, fmt.Errorf("dict: key %v is not a string", pairs[i])
			}
			m[key] = pairs[i+1]
		}
		return m, nil
	},
	"add": func(a, b int) int {
		return a + b
	},
	"percent": func(a, b int) int {
		if b == 0 {
			return 0
		}
		return (a * 100) / b
	},
	"toJSON": func(v any) template.JS {
		b, err := json.Marshal(v)
		if err != nil {
			return template.JS("null")
		}
		return template.JS(b)
	},
}

// renderTemplate renders a page inside the layout with the shared components.
func renderTemplate(w io.Writer, name string, data map[string]any) error {
	content, ok := templates[name]
	if !ok {
		return fmt.Errorf("template not found: %s", name)
	}

	layout, ok := templates["layout"]
	if !ok {
		return fmt.Errorf("layout template not found")
	}

	tmpl, err := template.New("layout").Funcs(templateFuncs).Parse(layout)
	if err != nil {
		return fmt.Errorf("parse layout: %w", err)
	}

	if _, err := tmpl.New("content").Parse(content); err != nil {
		return fmt.Errorf("parse content: %w", err)
	}

	for compName, compContent := range templates {
		if strings.HasPrefix(compName, "components/") {
			if _, err := tmpl.New(filepath.Base(compName)).Parse(compContent); err != nil {
				return fmt.Errorf("parse component %s: %w", compName, err)
			}
		}
	}

	return tmpl.Execute(w, data)
}

var templates = map[string]string{
	"layout": `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <script src="https://cdn.tailwindcss.com"></script>
</head>
<body class="bg-gray-50 min-h-screen flex flex-col">
    {{template "header" .}}
    <main class="flex-grow container mx-auto px-4 sm:px-6 lg:px-8 py-8">
        {{template "content" .}}
    </main>
    {{template "footer" .}}
</body>
</html>`,

	"components/header": `{{define "header"}}
<header class="bg-white border-b border-gray-200 sticky top-0 z-40">
    <div class="container mx-auto px-4 sm:px-6 lg:px-8">
        <div class="flex items-center justify-between h-16">
            <div class="flex items-center">
                <a href="/" class="text-xl font-bold text-gray-900">LabFlow</a>
                <nav class="hidden md:ml-10 md:flex md:space-x-4">
                    {{range $link := .Nav}}
                    <a href="{{$link.Href}}" class="px-3 py-2 text-sm font-medium rounded-md {{if eq $link.Href $.Active}}text-indigo-600 bg-indigo-50{{else}}text-gray-600 hover:text-gray-900 hover:bg-gray-50{{end}}">{{$link.Label}}</a>
                    {{end}}
                </nav>
            </div>
            <div class="flex items-center space-x-4">
                <form action="/assays" method="GET" class="hidden md:block">
                    <input type="text" name="q" placeholder="Search assays..." class="rounded-md border border-gray-300 bg-gray-50 py-1 px-3 text-sm">
                </form>
                {{if .Session}}
                <span class="text-sm text-gray-700">Welcome, {{.Session.Email}}</span>
                <a href="/logout" class="text-sm text-gray-500 hover:text-gray-700">Logout</a>
                {{else}}
                <a href="/login" class="text-sm text-gray-500 hover:text-gray-700">Sign in</a>
                <a href="/signup" class="text-sm text-indigo-600 hover:text-indigo-700">Sign up</a>
                {{end}}
            </div>
        </div>
    </div>
</header>
{{end}}`,

	"components/footer": `{{define "footer"}}
<footer class="bg-white border-t border-gray-200">
    <div class="container mx-auto px-4 sm:px-6 lg:px-8 py-6 md:flex md:items-center md:justify-between">
        <div class="flex items-center">
            <span class="text-lg font-bold text-gray-900">LabFlow</span>
            <p class="ml-4 text-sm text-gray-500">&copy; {{.Year}} LabFlow. All rights reserved.</p>
        </div>
        <p class="mt-4 md:mt-0 text-xs text-gray-500">Step-by-step protocols for microbiology labs</p>
    </div>
</footer>
{{end}}`,

	"components/card": `{{define "card"}}
<a href="{{.Href}}" class="block h-full">
    <div class="h-full bg-white rounded-lg border border-gray-200 shadow-sm overflow-hidden transition-all duration-200 hover:shadow-md hover:-translate-y-1">
        <div class="p-6 h-full flex flex-col">
            <h3 class="text-lg font-semibold text-gray-900 mb-2">{{.Title}}</h3>
            {{if .Meta}}<div class="mb-2 text-sm text-gray-500">{{.Meta}}</div>{{end}}
            {{if .Body}}<p class="text-gray-600 mb-4 flex-grow">{{.Body}}</p>{{end}}
            {{if .Footer}}<div class="mt-auto pt-4 text-sm text-indigo-600 font-medium">{{.Footer}} &rarr;</div>{{end}}
        </div>
    </div>
</a>
{{end}}`,

	"components/button": `{{define "button"}}
<button type="{{or .Type "button"}}"{{if .ID}} id="{{.ID}}"{{end}}{{if .Formaction}} formaction="{{.Formaction}}"{{end}}
        class="inline-flex items-center justify-center px-4 py-2 text-sm font-medium rounded-md {{if eq .Variant "outline"}}border border-gray-300 text-gray-700 bg-white hover:bg-gray-50{{else if eq .Variant "danger"}}text-white bg-red-600 hover:bg-red-700{{else}}text-white bg-indigo-600 hover:bg-indigo-700{{end}}">
    {{.Label}}
</button>
{{end}}`,

	"components/input": `{{define "input"}}
<div>
    {{if .Label}}<label for="{{.Name}}" class="block text-sm font-medium text-gray-700 mb-1">{{.Label}}</label>{{end}}
    <input id="{{.Name}}" name="{{.Name}}" type="{{or .Type "text"}}" value="{{.Value}}"{{if .Placeholder}} placeholder="{{.Placeholder}}"{{end}}{{if .Required}} required{{end}}
           class="block w-full rounded-md border {{if .Error}}border-red-500{{else}}border-gray-300{{end}} bg-white py-2 px-3 shadow-sm focus:border-indigo-500 focus:outline-none">
    {{if .Error}}<p class="mt-1 text-sm text-red-600">{{.Error}}</p>{{end}}
</div>
{{end}}`,

	"error": `{{define "content"}}
<div class="max-w-xl mx-auto text-center py-16">
    <h1 class="text-2xl font-bold text-gray-900 mb-4">Something went wrong</h1>
    <p class="text-gray-600 mb-8">{{.Message}}</p>
    <a href="/" class="text-indigo-600 hover:text-indigo-700">Back to home</a>
</div>
{{end}}`,

	"home": `{{define "content"}}
<section class="text-center py-12">
    <h1 class="text-4xl md:text-5xl font-bold text-gray-900 mb-6">Streamline Your Microbiology Lab Workflows</h1>
    <p class="text-xl text-gray-600 mb-8">Step-by-step guides for producing custom plasmid DNA sections and other critical laboratory processes.</p>
    <a href="/workflows">{{template "button" (dict "Label" "Explore Workflows")}}</a>
</section>

<section class="py-8">
    <div class="max-w-3xl mx-auto bg-white rounded-lg shadow-sm p-6">
        <h2 class="text-xl font-semibold text-gray-900 mb-4">Find the workflow you need</h2>
        <form action="/workflows" method="GET" class="flex gap-2">
            <div class="flex-grow">{{template "input" (dict "Name" "q" "Placeholder" "Search for workflows, techniques, or materials...")}}</div>
            {{template "button" (dict "Label" "Search" "Type" "submit")}}
        </form>
    </div>
</section>

<section class="py-8">
    <div class="flex justify-between items-center mb-6">
        <h2 class="text-2xl font-bold text-gray-900">Featured Workflows</h2>
        <a href="/workflows" class="text-indigo-600 hover:text-indigo-700">View all &rarr;</a>
    </div>
    {{if .Featured}}
    <div class="grid grid-cols-1 md:grid-cols-3 gap-6">
        {{range .Featured}}
        {{template "card" (dict "Href" (printf "/workflows/%s" .ID) "Title" .Title "Meta" (printf "%s · %s" .Category .Difficulty) "Body" (truncate .Description 120) "Footer" "View workflow")}}
        {{end}}
    </div>
    {{else}}
    <div class="text-center py-12">
        <h3 class="text-lg font-medium text-gray-900 mb-2">No workflows available yet</h3>
        <p class="text-gray-500 mb-6">Check back soon or create your own workflow.</p>
        <a href="/admin/workflows/new">{{template "button" (dict "Label" "Create Workflow")}}</a>
    </div>
    {{end}}
</section>

<section class="py-8 grid grid-cols-1 md:grid-cols-3 gap-8">
    <div class="bg-white rounded-lg p-6 shadow-sm">
        <h3 class="text-xl font-semibold text-gray-900 mb-2">Precise Protocols</h3>
        <p class="text-gray-600">Step-by-step workflows with automated calculations for every lab procedure.</p>
    </div>
    <div class="bg-white rounded-lg p-6 shadow-sm">
        <h3 class="text-xl font-semibold text-gray-900 mb-2">Customizable Parameters</h3>
        <p class="text-gray-600">Enter your sample counts and volumes and every quantity is recalculated.</p>
    </div>
    <div class="bg-white rounded-lg p-6 shadow-sm">
        <h3 class="text-xl font-semibold text-gray-900 mb-2">Quality Resources</h3>
        <p class="text-gray-600">Materials lists with links to the supplies each assay needs.</p>
    </div>
</section>
{{end}}`,

	"login": `{{define "content"}}
<div class="max-w-md mx-auto py-12">
    <h2 class="text-center text-3xl font-extrabold text-gray-900 mb-2">Sign in to LabFlow</h2>
    <p class="text-center text-sm text-gray-600 mb-8">No account? <a href="/signup" class="text-indigo-600">Sign up</a></p>
    {{if .Error}}
    <div class="rounded-md bg-red-50 p-4 mb-6"><div class="text-sm text-red-700">{{.Error}}</div></div>
    {{end}}
    <form class="space-y-6" action="/login" method="POST">
        <input type="hidden" name="next" value="{{.Next}}">
        {{template "input" (dict "Name" "email" "Label" "Email" "Type" "email" "Value" .Email "Required" true)}}
        {{template "input" (dict "Name" "password" "Label" "Password" "Type" "password" "Required" true)}}
        {{template "button" (dict "Label" "Sign in" "Type" "submit")}}
    </form>
</div>
{{end}}`,

	"signup": `{{define "content"}}
<div class="max-w-md mx-auto py-12">
    <h2 class="text-center text-3xl font-extrabold text-gray-900 mb-2">Create your account</h2>
    <p class="text-center text-sm text-gray-600 mb-8">Already registered? <a href="/login" class="text-indigo-600">Sign in</a></p>
    {{if .Error}}
    <div class="rounded-md bg-red-50 p-4 mb-6"><div class="text-sm text-red-700">{{.Error}}</div></div>
    {{end}}
    <form class="space-y-6" action="/signup" method="POST">
        {{template "input" (dict "Name" "display_name" "Label" "Name" "Value" .DisplayName)}}
        {{template "input" (dict "Name" "email" "Label" "Email" "Type" "email" "Value" .Email "Required" true "Error" (index .Errors "email"))}}
        {{template "input" (dict "Name" "password" "Label" "Password" "Type" "password" "Required" true "Error" (index .Errors "password"))}}
        {{template "button" (dict "Label" "Sign up" "Type" "submit")}}
    </form>
</div>
{{end}}`,

	"dashboard": `{{define "content"}}
<h1 class="text-2xl font-bold text-gray-900 mb-8">Dashboard</h1>
<div class="grid grid-cols-1 md:grid-cols-2 gap-6 mb-8">
    <div class="bg-white rounded-lg border border-gray-200 shadow-sm p-6">
        <h3 class="text-sm font-medium text-gray-500">Active Workflows</h3>
        <div class="text-3xl font-bold text-indigo-600">{{.ActiveCount}}</div>
        <div class="mt-2 text-sm text-gray-500">In Progress</div>
    </div>
    <div class="bg-white rounded-lg border border-gray-200 shadow-sm p-6">
        <h3 class="text-sm font-medium text-gray-500">Completed Workflows</h3>
        <div class="text-3xl font-bold text-green-600">{{.CompletedCount}}</div>
        <div class="mt-2 text-sm text-gray-500">Finished</div>
    </div>
</div>

<h2 class="text-xl font-semibold text-gray-900 mb-4">Recent Workflows</h2>
{{if .Recent}}
<div class="space-y-4">
    {{range .Recent}}
    <a href="/workflows/{{.WorkflowID}}" class="block bg-white rounded-lg border border-gray-200 shadow-sm hover:shadow-md">
        <div class="flex items-center justify-between px-6 py-4">
            <div>
                <h3 class="font-medium text-gray-900">{{or (lookup $.WorkflowTitles .WorkflowID) (printf "Workflow #%s" .ID)}}</h3>
                <p class="text-sm text-gray-500">Started {{formatDate .StartedAt}}{{if .CompletedAt}} · Completed {{formatDatePtr .CompletedAt}}{{end}}</p>
            </div>
            <span class="px-2 py-1 text-xs font-medium rounded-full {{statusBadge (print .Status)}}">{{statusLabel (print .Status)}}</span>
        </div>
    </a>
    {{end}}
</div>
{{else}}
<div class="bg-white rounded-lg border border-gray-200 text-center py-12">
    <h3 class="text-lg font-medium text-gray-900 mb-2">No workflows yet</h3>
    <p class="text-gray-500 mb-6">Start a new workflow to track your progress.</p>
    <a href="/workflows">{{template "button" (dict "Label" "Browse Workflows")}}</a>
</div>
{{end}}
{{end}}`,

	"workflows/list": `{{define "content"}}
<div class="flex justify-between items-center mb-8">
    <h1 class="text-2xl font-bold text-gray-900">Workflows</h1>
    <form action="/workflows" method="GET" class="flex gap-2">
        {{template "input" (dict "Name" "q" "Value" .Query "Placeholder" "Search workflows...")}}
        {{template "button" (dict "Label" "Search" "Type" "submit" "Variant" "outline")}}
    </form>
</div>
{{if .Workflows}}
<div class="grid grid-cols-1 md:grid-cols-3 gap-6">
    {{range .Workflows}}
    {{template "card" (dict "Href" (printf "/workflows/%s" .ID) "Title" .Title "Meta" (printf "%s · %s · %s" .Category .Difficulty .EstimatedTotalTime) "Body" (truncate .Description 120) "Footer" "View workflow")}}
    {{end}}
</div>
{{if .Pagination.HasMore}}
<div class="mt-8 text-center"><a href="/workflows?offset={{.Pagination.NextOffset}}&q={{.Query}}" class="text-indigo-600">More workflows &rarr;</a></div>
{{end}}
{{else}}
<p class="text-center text-gray-500 py-12">No workflows found.</p>
{{end}}
{{end}}`,

	"workflows/detail": `{{define "content"}}
<a href="/workflows" class="text-sm text-gray-500 hover:text-gray-700">&larr; Back to Workflows</a>
<div class="mt-4 mb-8">
    <h1 class="text-3xl font-bold text-gray-900">{{.Workflow.Title}}</h1>
    <p class="mt-2 text-sm text-gray-500">{{.Workflow.Category}} · {{.Workflow.Difficulty}} · {{.Workflow.EstimatedTotalTime}}{{if .TotalMinutes}} ({{formatMinutes .TotalMinutes}} of assays){{end}}</p>
    <p class="mt-4 text-gray-700">{{.Workflow.Description}}</p>
    {{if .Workflow.Hypothesis}}<p class="mt-2 text-gray-600 italic">Hypothesis: {{.Workflow.Hypothesis}}</p>{{end}}
</div>

{{if .Run}}
<div class="bg-indigo-50 border border-indigo-200 rounded-lg p-6 mb-8">
    <h2 class="text-lg font-semibold text-gray-900">Your run</h2>
    <p class="text-sm text-gray-600 mt-1">Started {{formatDate .Run.StartedAt}} · Assay {{add .Progress.AssayIndex 1}} of {{.Progress.AssayCount}} · Step {{add .Progress.StepIndex 1}} of {{.Progress.StepCount}}</p>
    {{if .CurrentStep}}<p class="mt-2 font-medium text-gray-900">Current step: {{.CurrentStep.Title}}</p>{{end}}
    <form method="POST" class="mt-4 flex gap-2">
        {{template "button" (dict "Label" "Next step" "Type" "submit" "Formaction" (printf "/runs/%s/advance" .Run.ID))}}
        {{template "button" (dict "Label" "Mark complete" "Type" "submit" "Variant" "outline" "Formaction" (printf "/runs/%s/complete" .Run.ID))}}
        {{template "button" (dict "Label" "Abandon" "Type" "submit" "Variant" "danger" "Formaction" (printf "/runs/%s/abandon" .Run.ID))}}
    </form>
</div>
{{else if .Session}}
<form method="POST" action="/workflows/{{.Workflow.ID}}/start" class="mb-8">
    {{template "button" (dict "Label" "Start this workflow" "Type" "submit")}}
</form>
{{else}}
<p class="mb-8 text-sm text-gray-600"><a href="/login?next=/workflows/{{.Workflow.ID}}" class="text-indigo-600">Sign in</a> to track your progress through this workflow.</p>
{{end}}

<h2 class="text-xl font-semibold text-gray-900 mb-4">Assays</h2>
{{if .Assays}}
<ol class="space-y-4">
    {{range $i, $a := .Assays}}
    <li class="bg-white rounded-lg border border-gray-200 shadow-sm p-6 {{if and $.Run (eq $.Run.CurrentAssayID $a.ID)}}ring-2 ring-indigo-400{{end}}">
        <div class="flex justify-between">
            <a href="/assays/{{$a.ID}}" class="text-lg font-semibold text-gray-900 hover:text-indigo-600">{{add $i 1}}. {{$a.Title}}</a>
            <span class="text-sm text-gray-500">{{$a.EstimatedTime}}</span>
        </div>
        <p class="mt-2 text-gray-600">{{truncate $a.Description 160}}</p>
        {{with index $.Requires $a.ID}}<p class="mt-2 text-xs text-gray-500">After: {{range $j, $t := .}}{{if $j}}, {{end}}{{$t}}{{end}}</p>{{end}}
    </li>
    {{end}}
</ol>
{{else}}
<p class="text-gray-500">This workflow has no assays yet.</p>
{{end}}
{{end}}`,

	"assays/list": `{{define "content"}}
<div class="flex justify-between items-center mb-8">
    <h1 class="text-2xl font-bold text-gray-900">Assay Inventory</h1>
    {{if and .Session .Session.IsAdmin}}<a href="/admin/assays/new" class="text-indigo-600 hover:text-indigo-700">Create Assay &rarr;</a>{{end}}
</div>
{{if .Query}}<p class="mb-4 text-sm text-gray-500">Results for "{{.Query}}"</p>{{end}}
{{if .Assays}}
<div class="grid grid-cols-1 md:grid-cols-3 gap-6">
    {{range .Assays}}
    {{template "card" (dict "Href" (printf "/assays/%s" .ID) "Title" .Title "Meta" (printf "%s · %d materials · %d parameters" .EstimatedTime (len .Materials) (len .Parameters)) "Body" (truncate .Description 120) "Footer" "View details")}}
    {{end}}
</div>
{{else}}
<p class="text-center text-gray-500 py-12">No assays found.</p>
{{end}}
{{end}}`,

	"assays/detail": `{{define "content"}}
<a href="/assays" class="text-sm text-gray-500 hover:text-gray-700">&larr; Back to Assays</a>
<div class="mt-4 mb-8">
    <h1 class="text-3xl font-bold text-gray-900">{{.Assay.Title}}</h1>
    <p class="mt-2 text-sm text-gray-500">{{.Assay.EstimatedTime}}</p>
    <p class="mt-4 text-gray-700">{{.Assay.Description}}</p>
</div>

<div class="grid grid-cols-1 lg:grid-cols-3 gap-6">
    <div class="lg:col-span-2 space-y-6">
        <div class="bg-white rounded-lg border border-gray-200 shadow-sm">
            <div class="px-6 py-4 border-b border-gray-200"><h2 class="text-lg font-semibold">Protocol</h2></div>
            <div class="p-6 whitespace-pre-line text-gray-700">{{.Assay.Protocol}}</div>
        </div>
        <div class="bg-white rounded-lg border border-gray-200 shadow-sm">
            <div class="px-6 py-4 border-b border-gray-200"><h2 class="text-lg font-semibold">Steps</h2></div>
            <ol class="divide-y divide-gray-200">
                {{range .Steps}}
                <li class="p-6">
                    <div class="flex justify-between">
                        <h3 class="font-medium text-gray-900">{{.Order}}. {{.Title}}</h3>
                        <span class="text-sm text-gray-500">{{.EstimatedTime}}</span>
                    </div>
                    <p class="mt-1 text-gray-600">{{.Description}}</p>
                    {{if .Warning}}<p class="mt-2 text-sm text-amber-700 bg-amber-50 rounded p-2">{{.Warning}}</p>{{end}}
                    {{if .HasFormula}}
                    {{with index $.Quantities .ID}}
                    <p class="mt-2 text-sm">Calculated: {{if .Error}}<span class="text-red-600">{{.Error}}</span>{{else}}<span class="font-semibold text-indigo-700">{{formatQuantity .Value}}</span>{{end}}</p>
                    {{end}}
                    {{end}}
                    {{if .Notes}}<p class="mt-2 text-xs text-gray-500">{{.Notes}}</p>{{end}}
                </li>
                {{else}}
                <li class="p-6 text-gray-500">No steps defined</li>
                {{end}}
            </ol>
        </div>
    </div>

    <div class="space-y-6">
        <div class="bg-white rounded-lg border border-gray-200 shadow-sm">
            <div class="px-6 py-4 border-b border-gray-200"><h2 class="text-lg font-semibold">Parameters</h2></div>
            <form method="GET" action="/assays/{{.Assay.ID}}" class="p-6 space-y-4">
                {{range .Assay.Parameters}}
                {{$v := lookup $.Values .Name}}
                <div>
                    <label class="block text-sm font-medium text-gray-700 mb-1">{{.Name}}{{if .Unit}} ({{.Unit}}){{end}}{{if .Required}} *{{end}}</label>
                    {{if eq (print .Type) "number"}}
                    <input type="number" name="{{.Name}}" value="{{valueString $v}}"{{with .Min}} min="{{formatFloatPtr .}}"{{end}}{{with .Max}} max="{{formatFloatPtr .}}"{{end}} step="{{or (formatFloatPtr .Step) "any"}}" class="block w-full rounded-md border border-gray-300 py-2 px-3">
                    {{else if eq (print .Type) "select"}}
                    <select name="{{.Name}}" class="block w-full rounded-md border border-gray-300 py-2 px-3">
                        {{range .Options}}<option value="{{.}}"{{if eq . (valueString $v)}} selected{{end}}>{{.}}</option>{{end}}
                    </select>
                    {{else if eq (print .Type) "radio"}}
                    {{$name := .Name}}
                    {{range .Options}}<label class="mr-4 text-sm"><input type="radio" name="{{$name}}" value="{{.}}"{{if eq . (valueString $v)}} checked{{end}}> {{.}}</label>{{end}}
                    {{else if eq (print .Type) "checkbox"}}
                    <input type="checkbox" name="{{.Name}}" value="true"{{if isTrue $v}} checked{{end}}>
                    {{else}}
                    <input type="text" name="{{.Name}}" value="{{valueString $v}}" class="block w-full rounded-md border border-gray-300 py-2 px-3">
                    {{end}}
                    {{if .Description}}<p class="mt-1 text-xs text-gray-500">{{.Description}}</p>{{end}}
                </div>
                {{else}}
                <p class="text-sm text-gray-500">This assay has no parameters.</p>
                {{end}}
                {{if .Assay.Parameters}}{{template "button" (dict "Label" "Recalculate" "Type" "submit")}}{{end}}
            </form>
        </div>
        <div class="bg-white rounded-lg border border-gray-200 shadow-sm">
            <div class="px-6 py-4 border-b border-gray-200"><h2 class="text-lg font-semibold">Materials</h2></div>
            <ul class="p-6 space-y-2">
                {{range .Assay.Materials}}
                <li class="text-sm text-gray-700">{{if .AffiliateLink}}<a href="{{.AffiliateLink}}" class="text-indigo-600" rel="noopener" target="_blank">{{.Name}}</a>{{else}}{{.Name}}{{end}} · {{.Quantity}} {{.Unit}}</li>
                {{else}}
                <li class="text-sm text-gray-500">No materials listed.</li>
                {{end}}
            </ul>
        </div>
    </div>
</div>
{{end}}`,

	"admin/index": `{{define "content"}}
<h1 class="text-2xl font-bold text-gray-900 mb-8">Admin Dashboard</h1>
<div class="grid grid-cols-1 md:grid-cols-3 gap-6 mb-8">
    {{template "card" (dict "Href" "/admin/workflows/new" "Title" "Create Workflow" "Body" "Add a new workflow template to the system")}}
    {{template "card" (dict "Href" "/admin/assays/new" "Title" "Create Assay" "Body" "Add an assay with materials, parameters, and steps")}}
    {{template "card" (dict "Href" "/dashboard" "Title" "Activity" "Body" (printf "%d users · %d workflows · %d assays" .UserCount .WorkflowCount .AssayCount))}}
</div>
<h2 class="text-xl font-semibold text-gray-900 mb-4">All workflows</h2>
<table class="min-w-full bg-white rounded-lg border border-gray-200 text-sm">
    <thead><tr class="text-left text-gray-500"><th class="px-4 py-2">Title</th><th class="px-4 py-2">Status</th><th class="px-4 py-2">Assays</th><th class="px-4 py-2">Updated</th></tr></thead>
    <tbody>
    {{range .Workflows}}
    <tr class="border-t border-gray-200">
        <td class="px-4 py-2"><a href="/workflows/{{.ID}}" class="text-indigo-600">{{.Title}}</a></td>
        <td class="px-4 py-2"><span class="px-2 py-1 rounded-full text-xs {{statusBadge (print .Status)}}">{{.Status}}</span></td>
        <td class="px-4 py-2">{{len .AssayIDs}}</td>
        <td class="px-4 py-2">{{formatDate .UpdatedAt}}</td>
    </tr>
    {{end}}
    </tbody>
</table>
{{end}}`,

	"admin/workflow_new": `{{define "content"}}
<a href="/admin" class="text-sm text-gray-500 hover:text-gray-700">&larr; Back to Admin</a>
<h1 class="mt-4 text-2xl font-bold text-gray-900 mb-6">Create New Workflow</h1>
{{if .Error}}<div class="rounded-md bg-red-50 p-4 mb-6 text-sm text-red-700">{{.Error}}</div>{{end}}
<form method="POST" action="/admin/workflows/new" class="grid grid-cols-12 gap-6">
    <div class="col-span-12 lg:col-span-8 space-y-6">
        <div class="bg-white rounded-lg border border-gray-200 shadow-sm p-6 space-y-4">
            {{template "input" (dict "Name" "title" "Label" "Title" "Value" .Form.Title "Placeholder" "e.g., DNA Extraction Protocol" "Error" (index .Errors "title"))}}
            {{template "input" (dict "Name" "description" "Label" "Description (optional)" "Value" .Form.Description)}}
            {{template "input" (dict "Name" "category" "Label" "Category (optional)" "Value" .Form.Category "Placeholder" "e.g., Molecular Biology")}}
            {{template "input" (dict "Name" "estimated_total_time" "Label" "Estimated total time" "Value" .Form.EstimatedTotalTime "Placeholder" "e.g., 2 days")}}
            <div>
                <label class="block text-sm font-medium text-gray-700 mb-1">Difficulty Level</label>
                <select name="difficulty" class="block w-full rounded-md border border-gray-300 bg-white py-2 px-3">
                    {{range .Difficulties}}<option value="{{.}}"{{if eq (print .) (print $.Form.Difficulty)}} selected{{end}}>{{.}}</option>{{end}}
                </select>
            </div>
            <label class="text-sm"><input type="checkbox" name="publish" value="true"{{if eq (print .Form.Status) "published"}} checked{{end}}> Publish immediately</label>
        </div>
        <div class="bg-white rounded-lg border border-gray-200 shadow-sm p-6">
            <h2 class="text-lg font-semibold mb-2">Assay Dependencies</h2>
            <p class="text-sm text-gray-500 mb-4">Each row means the first assay must be performed before the second.</p>
            <div id="edges" class="space-y-2">
                {{range .Edges}}
                <div class="flex gap-2 edge-row">
                    <select name="dep_from" class="flex-1 rounded-md border border-gray-300 py-2 px-3"><option value="">Select assay</option>{{$from := .FromAssayID}}{{range $.Palette}}<option value="{{.ID}}"{{if eq .ID $from}} selected{{end}}>{{.Title}}</option>{{end}}</select>
                    <span class="self-center">&rarr;</span>
                    <select name="dep_to" class="flex-1 rounded-md border border-gray-300 py-2 px-3"><option value="">Select assay</option>{{$to := .ToAssayID}}{{range $.Palette}}<option value="{{.ID}}"{{if eq .ID $to}} selected{{end}}>{{.Title}}</option>{{end}}</select>
                </div>
                {{end}}
            </div>
            <div class="mt-4">{{template "button" (dict "Label" "Add dependency" "Variant" "outline" "ID" "add-edge")}}</div>
        </div>
    </div>
    <div class="col-span-12 lg:col-span-4">
        <div class="bg-white rounded-lg border border-gray-200 shadow-sm p-6 sticky top-24">
            <h2 class="text-lg font-semibold mb-4">Available Assays</h2>
            <div class="mb-4 flex gap-2">
                <input type="text" name="q" value="{{.Query}}" placeholder="Search assays..." class="flex-1 rounded-md border border-gray-300 py-2 px-3">
                {{template "button" (dict "Label" "Filter" "Type" "submit" "Variant" "outline" "Formaction" "/admin/workflows/new?filter=1")}}
            </div>
            <div class="space-y-2 max-h-[500px] overflow-y-auto">
                {{range .Palette}}
                <label class="flex items-start gap-2 p-3 bg-gray-50 rounded-md hover:bg-gray-100">
                    <input type="checkbox" name="assay_ids" value="{{.ID}}"{{if index $.Selected .ID}} checked{{end}} class="mt-1">
                    <span><span class="font-medium text-gray-900">{{.Title}}</span><br><span class="text-sm text-gray-500">{{.EstimatedTime}}</span></span>
                </label>
                {{else}}
                <div class="text-center py-8">
                    <p class="text-gray-500">No assays found</p>
                    <a href="/admin/assays/new" class="text-indigo-600 text-sm">Create New Assay</a>
                </div>
                {{end}}
            </div>
        </div>
    </div>
    <div class="col-span-12 flex justify-end">{{template "button" (dict "Label" "Create Workflow" "Type" "submit")}}</div>
</form>
<script>
document.getElementById('add-edge').addEventListener('click', function () {
    var rows = document.querySelectorAll('#edges .edge-row');
    var clone = rows[rows.length - 1].cloneNode(true);
    clone.querySelectorAll('select').forEach(function (s) { s.value = ''; });
    document.getElementById('edges').appendChild(clone);
});
</script>
{{end}}`,

	"admin/assay_new": `{{define "content"}}
<a href="/assays" class="text-sm text-gray-500 hover:text-gray-700">&larr; Back to Assays</a>
<h1 class="mt-4 text-2xl font-bold text-gray-900 mb-6">Create New Assay</h1>
{{if .Error}}<div class="rounded-md bg-red-50 p-4 mb-6 text-sm text-red-700">{{.Error}}</div>{{end}}
<form method="POST" action="/admin/assays/new" class="max-w-4xl space-y-8">
    <div class="bg-white rounded-lg border border-gray-200 shadow-sm p-6 space-y-4">
        {{template "input" (dict "Name" "title" "Label" "Title" "Value" .Form.Title "Placeholder" "e.g., PCR Amplification" "Error" (index .Errors "title"))}}
        {{template "input" (dict "Name" "description" "Label" "Description" "Value" .Form.Description "Placeholder" "Brief description of the assay" "Error" (index .Errors "description"))}}
        <div>
            <label for="protocol" class="block text-sm font-medium text-gray-700 mb-1">Protocol</label>
            <textarea id="protocol" name="protocol" rows="5" class="block w-full rounded-md border border-gray-300 py-2 px-3" placeholder="Detailed protocol instructions">{{.Form.Protocol}}</textarea>
            {{with index .Errors "protocol"}}<p class="mt-1 text-sm text-red-600">{{.}}</p>{{end}}
        </div>
        {{template "input" (dict "Name" "estimated_time" "Label" "Estimated Time" "Value" .Form.EstimatedTime "Placeholder" "e.g., 2 hours" "Error" (index .Errors "estimated_time"))}}
        <div>
            <label class="block text-sm font-medium text-gray-700 mb-1">Workflow</label>
            <select name="workflow_id" class="block w-full rounded-md border border-gray-300 bg-white py-2 px-3">
                <option value="">Select workflow</option>
                {{range .Workflows}}<option value="{{.ID}}"{{if eq .ID $.Form.WorkflowID}} selected{{end}}>{{.Title}}</option>{{end}}
            </select>
        </div>
    </div>

    <div class="bg-white rounded-lg border border-gray-200 shadow-sm p-6">
        <h2 class="text-lg font-semibold mb-4">Materials</h2>
        <div id="materials" class="space-y-2">
            {{range .Materials}}
            <div class="flex gap-2 material-row">
                <input name="material_name" value="{{.Name}}" placeholder="Material name" class="flex-1 rounded-md border border-gray-300 py-2 px-3">
                <input name="material_quantity" value="{{.Quantity}}" placeholder="Quantity" class="w-24 rounded-md border border-gray-300 py-2 px-3">
                <input name="material_unit" value="{{.Unit}}" placeholder="Unit" class="w-24 rounded-md border border-gray-300 py-2 px-3">
                <input name="material_link" value="{{.AffiliateLink}}" placeholder="Supplier link" class="flex-1 rounded-md border border-gray-300 py-2 px-3">
                <button type="button" class="remove-row text-sm text-gray-500">Remove</button>
            </div>
            {{end}}
        </div>
        <div class="mt-4">{{template "button" (dict "Label" "Add Material" "Variant" "outline" "ID" "add-material")}}</div>
    </div>

    <div class="bg-white rounded-lg border border-gray-200 shadow-sm p-6">
        <h2 class="text-lg font-semibold mb-4">Parameters</h2>
        <div id="parameters" class="space-y-2">
            {{range .Parameters}}
            <div class="flex flex-wrap gap-2 parameter-row">
                <input name="param_name" value="{{.Name}}" placeholder="Parameter name" class="w-40 rounded-md border border-gray-300 py-2 px-3">
                <input name="param_description" value="{{.Description}}" placeholder="Description" class="flex-1 rounded-md border border-gray-300 py-2 px-3">
                <select name="param_type" class="rounded-md border border-gray-300 py-2 px-3">
                    {{$t := print .Type}}{{range $.ParamTypes}}<option value="{{.}}"{{if eq (print .) $t}} selected{{end}}>{{.}}</option>{{end}}
                </select>
                <select name="param_required" class="rounded-md border border-gray-300 py-2 px-3">
                    <option value="false">optional</option><option value="true"{{if .Required}} selected{{end}}>required</option>
                </select>
                <input name="param_options" value="{{range $i, $o := .Options}}{{if $i}}, {{end}}{{$o}}{{end}}" placeholder="Options (comma separated)" class="w-48 rounded-md border border-gray-300 py-2 px-3">
                <input name="param_default" value="{{valueString .DefaultValue}}" placeholder="Default" class="w-24 rounded-md border border-gray-300 py-2 px-3">
                <input name="param_unit" value="{{.Unit}}" placeholder="Unit" class="w-20 rounded-md border border-gray-300 py-2 px-3">
                <button type="button" class="remove-row text-sm text-gray-500">Remove</button>
            </div>
            {{end}}
        </div>
        <div class="mt-4">{{template "button" (dict "Label" "Add Parameter" "Variant" "outline" "ID" "add-parameter")}}</div>
    </div>

    <div class="bg-white rounded-lg border border-gray-200 shadow-sm p-6">
        <h2 class="text-lg font-semibold mb-2">Steps</h2>
        <p class="text-sm text-gray-500 mb-4">Formulas reference parameters as ${name}, for example ${sampleCount} * 2.5.</p>
        <div id="steps" class="space-y-2">
            {{range .Steps}}
            <div class="flex flex-wrap gap-2 step-row">
                <input name="step_title" value="{{.Title}}" placeholder="Step title" class="w-48 rounded-md border border-gray-300 py-2 px-3">
                <input name="step_description" value="{{.Description}}" placeholder="Instructions" class="flex-1 rounded-md border border-gray-300 py-2 px-3">
                <input name="step_time" value="{{.EstimatedTime}}" placeholder="Time" class="w-28 rounded-md border border-gray-300 py-2 px-3">
                <input name="step_formula" value="{{.CalculationFormula}}" placeholder="Formula (optional)" class="w-56 rounded-md border border-gray-300 py-2 px-3">
                <button type="button" class="remove-row text-sm text-gray-500">Remove</button>
            </div>
            {{end}}
        </div>
        <div class="mt-4">{{template "button" (dict "Label" "Add Step" "Variant" "outline" "ID" "add-step")}}</div>
    </div>

    <div class="flex justify-end">{{template "button" (dict "Label" "Create Assay" "Type" "submit")}}</div>
</form>
<script>
function addRow(button, container, rowClass) {
    document.getElementById(button).addEventListener('click', function () {
        var rows = document.querySelectorAll('#' + container + ' .' + rowClass);
        var clone = rows[rows.length - 1].cloneNode(true);
        clone.querySelectorAll('input').forEach(function (i) { i.value = ''; });
        document.getElementById(container).appendChild(clone);
    });
}
addRow('add-material', 'materials', 'material-row');
addRow('add-parameter', 'parameters', 'parameter-row');
addRow('add-step', 'steps', 'step-row');
document.addEventListener('click', function (e) {
    if (!e.target.classList.contains('remove-row')) return;
    var row = e.target.parentElement;
    if (row.parentElement.children.length > 1) row.remove();
    else row.querySelectorAll('input').forEach(function (i) { i.value = ''; });
});
</script>
{{end}}`,
}
