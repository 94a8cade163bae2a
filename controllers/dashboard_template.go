package controllers

import _ "embed"

const dashboardTemplateName = "dashboard.html"

//go:embed templates/dashboard.html
var dashboardTemplate string
