package mcp

var ConvertJSONSchemaToGenaiForTest = convertJSONSchemaToGenai
